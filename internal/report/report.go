// Package report builds the weekly report tabs from a reconciliation
// result and the ledger. Builders produce plain row grids; writing them
// is the table store's job.
package report

import (
	"sort"
	"strconv"

	"sessionrec/internal/dateparse"
	"sessionrec/internal/ledger"
	"sessionrec/internal/model"
	"sessionrec/internal/reconcile"
)

// Report tab names.
const (
	TabClientList = "CLIENT LIST"
	TabLastWeek   = "LAST WEEK"
	TabSessions   = "SESSIONS"
	TabRevenue    = "REVENUE SUMMARY"
)

const layoutClock = "03:04 PM"

// ClientListRows renders the roster tab: every distinct client spelling
// with its ledger-wide completed-session count, busiest clients first.
func ClientListRows(counts []ledger.ClientCount) [][]string {
	rows := [][]string{{"CLIENT NAME", "SESSIONS COMPLETED"}}
	for _, c := range counts {
		rows = append(rows, []string{c.Name, strconv.Itoa(c.Sessions)})
	}
	return rows
}

// LastWeekRows renders the per-client week summary: session count plus
// one column per session date. The header widens to the busiest
// client's count.
func LastWeekRows(result reconcile.Result) [][]string {
	activities := sortedActivities(result)
	if len(activities) == 0 {
		return [][]string{{"CLIENT NAME", "SESSIONS COMPLETED"}}
	}

	maxSessions := 0
	for _, a := range activities {
		if a.Count > maxSessions {
			maxSessions = a.Count
		}
	}

	header := []string{"CLIENT NAME", "SESSIONS COMPLETED"}
	for i := 1; i <= maxSessions; i++ {
		header = append(header, "Session "+strconv.Itoa(i))
	}

	rows := [][]string{header}
	for _, a := range activities {
		row := []string{a.Client, strconv.Itoa(a.Count)}
		for _, d := range a.Dates {
			row = append(row, dateparse.FormatReport(d))
		}
		rows = append(rows, row)
	}
	return rows
}

// SessionsRows renders one row per observed session with its match
// status, chronological order.
func SessionsRows(result reconcile.Result) [][]string {
	rows := [][]string{{"CLIENT NAME", "DATE", "TIME", "MATCH STATUS"}}
	for _, s := range result.Sessions {
		rows = append(rows, []string{
			s.Client,
			dateparse.FormatReport(s.Date),
			s.Start.Format(layoutClock),
			string(s.Status),
		})
	}
	return rows
}

// sortedActivities orders the by-client map for stable output: session
// count descending, then name.
func sortedActivities(result reconcile.Result) []model.ClientActivity {
	activities := make([]model.ClientActivity, 0, len(result.ByClient))
	for _, a := range result.ByClient {
		activities = append(activities, a)
	}
	sort.Slice(activities, func(i, j int) bool {
		if activities[i].Count != activities[j].Count {
			return activities[i].Count > activities[j].Count
		}
		return activities[i].Client < activities[j].Client
	})
	return activities
}
