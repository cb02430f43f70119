package report

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"sessionrec/internal/dateparse"
	"sessionrec/internal/log"
	"sessionrec/internal/model"
	"sessionrec/internal/sessioncount"
)

// Sale is one completed session with its price, extracted from a
// ledger row. Rows with an unknown price contribute zero revenue but
// still count as sessions.
type Sale struct {
	Date   time.Time
	Client string
	Price  decimal.Decimal
}

// ParseSales extracts the sale records for one calendar year from
// ledger rows. Rows with unreadable dates are skipped.
func ParseSales(rows []model.LedgerRow, year int) []Sale {
	var sales []Sale
	for _, r := range rows {
		d, err := dateparse.Parse(r.Date)
		if err != nil {
			log.Warn("skipping revenue row with bad date", "date", r.Date, "client", r.ClientName)
			continue
		}
		if d.Year() != year {
			continue
		}
		price, ok := sessioncount.ParsePrice(r.Price)
		if !ok {
			price = decimal.Zero
		}
		sales = append(sales, Sale{Date: d, Client: r.ClientName, Price: price})
	}
	return sales
}

// MonthlyRevenue sums sale prices per month.
func MonthlyRevenue(sales []Sale) [13]decimal.Decimal {
	var out [13]decimal.Decimal
	for _, s := range sales {
		m := s.Date.Month()
		out[m] = out[m].Add(s.Price)
	}
	return out
}

// MonthlySessions counts sessions per month.
func MonthlySessions(sales []Sale) [13]int {
	var out [13]int
	for _, s := range sales {
		out[s.Date.Month()]++
	}
	return out
}

// monthlyClients collects the distinct clients seen in each month.
func monthlyClients(sales []Sale) [13]map[string]bool {
	var out [13]map[string]bool
	for i := range out {
		out[i] = map[string]bool{}
	}
	for _, s := range sales {
		out[s.Date.Month()][s.Client] = true
	}
	return out
}

// MonthlyNewClients counts, per month, clients whose first session of
// the year fell in that month.
func MonthlyNewClients(sales []Sale) [13]int {
	var out [13]int
	seen := map[string]bool{}
	months := monthlyClients(sales)
	for m := time.January; m <= time.December; m++ {
		for c := range months[m] {
			if !seen[c] {
				out[m]++
				seen[c] = true
			}
		}
	}
	return out
}

// MonthlyReturningClients counts, per month, clients who had already
// trained in an earlier month of the year.
func MonthlyReturningClients(sales []Sale) [13]int {
	var out [13]int
	seen := map[string]bool{}
	months := monthlyClients(sales)
	for m := time.January; m <= time.December; m++ {
		for c := range months[m] {
			if seen[c] {
				out[m]++
			}
		}
		for c := range months[m] {
			seen[c] = true
		}
	}
	return out
}

// MonthlyChurn computes, for each month after January, the share of
// the previous month's clients who did not return. Result is a
// percentage; months with no prior clients report zero.
func MonthlyChurn(sales []Sale) [13]float64 {
	var out [13]float64
	months := monthlyClients(sales)
	for m := time.February; m <= time.December; m++ {
		prev := months[m-1]
		if len(prev) == 0 {
			continue
		}
		lost := 0
		for c := range prev {
			if !months[m][c] {
				lost++
			}
		}
		out[m] = float64(lost) / float64(len(prev)) * 100
	}
	return out
}

// RevenueSummaryRows renders the year-over-year summary tab: one block
// per metric, each month compared against the same month last year.
func RevenueSummaryRows(current, previous []Sale, year int) [][]string {
	prevLabel := strconv.Itoa(year - 1)
	curLabel := strconv.Itoa(year)

	var rows [][]string
	addBlock := func(title string, prev, cur [13]string) {
		rows = append(rows, []string{title, prevLabel, curLabel})
		for m := time.January; m <= time.December; m++ {
			rows = append(rows, []string{m.String(), prev[m], cur[m]})
		}
		rows = append(rows, []string{""})
	}

	addBlock("MONTHLY REVENUE",
		formatMonthly(MonthlyRevenue(previous), sessioncount.FormatPrice),
		formatMonthly(MonthlyRevenue(current), sessioncount.FormatPrice))
	addBlock("SESSIONS COMPLETED",
		formatMonthly(MonthlySessions(previous), strconv.Itoa),
		formatMonthly(MonthlySessions(current), strconv.Itoa))
	addBlock("NEW CLIENTS",
		formatMonthly(MonthlyNewClients(previous), strconv.Itoa),
		formatMonthly(MonthlyNewClients(current), strconv.Itoa))
	addBlock("RETURNING CLIENTS",
		formatMonthly(MonthlyReturningClients(previous), strconv.Itoa),
		formatMonthly(MonthlyReturningClients(current), strconv.Itoa))
	addBlock("CHURN %",
		formatMonthly(MonthlyChurn(previous), formatPercent),
		formatMonthly(MonthlyChurn(current), formatPercent))
	return rows
}

func formatMonthly[T any](values [13]T, format func(T) string) [13]string {
	var out [13]string
	for m := time.January; m <= time.December; m++ {
		out[m] = format(values[m])
	}
	return out
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
