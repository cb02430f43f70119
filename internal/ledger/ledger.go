// Package ledger knows the shape of the sales table: its positional
// column schema, the row codec, and the derived views the reconciler
// and merger need (client roster, session counts, the (client,date)
// match index, last-row lookups, append position).
package ledger

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"sessionrec/internal/dateparse"
	applog "sessionrec/internal/log"
	"sessionrec/internal/model"
	"sessionrec/internal/namematch"
	"sessionrec/internal/timewindow"
)

// Positional column indexes of the sales table.
const (
	ColDate = iota
	ColClientName
	ColType
	ColCurrentSession
	ColPrice
	ColPaymentDue
	ColMonthlyCalc
	ColStatus

	ColumnCount
)

// Placeholder and tag values written into appended rows.
const (
	TypeIndividual  = "Individual"
	PriceUnknown    = "???"
	MonthlyCalcCell = "MONTHLY CALC??"
	StatusNewClient = "NEW CLIENT"
)

// TableNamePrefix is the name the active-year sales table is found by;
// the full name carries the year, e.g. "Sales & Sessions Completed 2024".
const TableNamePrefix = "Sales & Sessions Completed"

// Header is the sales table's header row.
var Header = []string{
	"DATE",
	"CLIENT NAME",
	"TYPE",
	"CURRENT SESSION",
	"PRICE PER SESSION",
	"PAYMENT DUE",
	"MONTHLY CALC",
	"STATUS",
}

// TableName returns the active sales table name for a year.
func TableName(year int) string {
	return TableNamePrefix + " " + strconv.Itoa(year)
}

// RowFromCells decodes one table row. Short rows are padded so that a
// ragged ledger never panics a batch.
func RowFromCells(cells []string) model.LedgerRow {
	padded := make([]string, ColumnCount)
	copy(padded, cells)
	return model.LedgerRow{
		Date:           padded[ColDate],
		ClientName:     padded[ColClientName],
		Type:           padded[ColType],
		CurrentSession: padded[ColCurrentSession],
		Price:          padded[ColPrice],
		PaymentDue:     padded[ColPaymentDue],
		MonthlyCalc:    padded[ColMonthlyCalc],
		Status:         padded[ColStatus],
	}
}

// CellsFromRow encodes a row in schema order.
func CellsFromRow(row model.LedgerRow) []string {
	return []string{
		row.Date,
		row.ClientName,
		row.Type,
		row.CurrentSession,
		row.Price,
		row.PaymentDue,
		row.MonthlyCalc,
		row.Status,
	}
}

// ParseTable decodes a raw table snapshot (row 1 = headers) into ledger
// rows. Fully empty rows are dropped.
func ParseTable(raw [][]string) []model.LedgerRow {
	if len(raw) <= 1 {
		return nil
	}
	rows := make([]model.LedgerRow, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		if rowEmpty(cells) {
			continue
		}
		rows = append(rows, RowFromCells(cells))
	}
	return rows
}

func rowEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Index holds exact (client, date) membership for match checking. Built
// once per run from the active year's table; the weaker latest-date
// heuristic is deliberately not used.
type Index struct {
	pairs map[string]model.LedgerRow
}

func pairKey(client string, date time.Time) string {
	return strings.ToLower(strings.TrimSpace(client)) + "|" + dateparse.Format(date)
}

// BuildIndex scans ledger rows and retains the (client, date) pairs
// whose date falls inside the window. Rows with unparseable dates are
// logged and skipped.
func BuildIndex(rows []model.LedgerRow, window timewindow.Window) *Index {
	idx := &Index{pairs: make(map[string]model.LedgerRow)}
	for _, row := range rows {
		if strings.TrimSpace(row.Date) == "" || strings.TrimSpace(row.ClientName) == "" {
			continue
		}
		d, err := dateparse.Parse(row.Date)
		if err != nil {
			applog.Warn("ledger row has unparseable date, skipping in index",
				"date", row.Date, "client", row.ClientName)
			continue
		}
		if !window.Contains(d) {
			continue
		}
		idx.pairs[pairKey(row.ClientName, d)] = row
	}
	return idx
}

// Has reports exact (client, date) membership.
func (i *Index) Has(client string, date time.Time) bool {
	_, ok := i.pairs[pairKey(client, date)]
	return ok
}

// Lookup returns the indexed row for a (client, date) pair, for audit
// logging of type/price collisions.
func (i *Index) Lookup(client string, date time.Time) (model.LedgerRow, bool) {
	row, ok := i.pairs[pairKey(client, date)]
	return row, ok
}

// Len reports the number of indexed pairs.
func (i *Index) Len() int {
	return len(i.pairs)
}

// ClientCount is one roster entry with its ledger-wide completed
// session count.
type ClientCount struct {
	Name     string
	Sessions int
}

// CountSessions tallies completed sessions per distinct client-name
// spelling across the whole ledger. Ordered by count descending, then
// name ascending, matching the CLIENT LIST report ordering.
func CountSessions(rows []model.LedgerRow) []ClientCount {
	counts := make(map[string]int)
	for _, row := range rows {
		name := strings.TrimSpace(row.ClientName)
		if name == "" {
			continue
		}
		counts[name]++
	}

	out := make([]ClientCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, ClientCount{Name: name, Sessions: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Sessions != out[b].Sessions {
			return out[a].Sessions > out[b].Sessions
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// Roster returns the client names in CountSessions order. This is the
// deterministic insertion order the reconciler's first-match-wins rule
// iterates in.
func Roster(rows []model.LedgerRow) []string {
	counts := CountSessions(rows)
	names := make([]string, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.Name)
	}
	return names
}

// LastRowFor scans the ledger from the end for the most recent row
// whose client name is similar to name.
func LastRowFor(rows []model.LedgerRow, name string, m namematch.Matcher) (model.LedgerRow, bool) {
	for i := len(rows) - 1; i >= 0; i-- {
		if m.Similar(rows[i].ClientName, name) {
			return rows[i], true
		}
	}
	return model.LedgerRow{}, false
}

// AppendStart returns the 1-based row number a new batch should be
// written at: directly after the last non-empty row of the raw table.
func AppendStart(raw [][]string) int {
	for i := len(raw) - 1; i >= 0; i-- {
		if !rowEmpty(raw[i]) {
			return i + 2
		}
	}
	return 1
}
