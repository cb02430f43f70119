// Package merge turns unmatched sessions into new ledger rows: the
// canonical client spelling, the continued package progress, the
// carried-forward price and the derived payment-due annotation.
package merge

import (
	"sessionrec/internal/dateparse"
	"sessionrec/internal/ledger"
	applog "sessionrec/internal/log"
	"sessionrec/internal/model"
	"sessionrec/internal/namematch"
	"sessionrec/internal/sessioncount"
)

// Merge computes the new rows for a batch of unmatched sessions against
// one ledger snapshot. Rows come back in input order, each a pure
// function of (session, snapshot); the caller owns the actual append.
// A client whose history cannot be resolved never blocks the rest of
// the batch.
func Merge(unmatched []model.Session, snapshot []model.LedgerRow, m namematch.Matcher) []model.LedgerRow {
	rows := make([]model.LedgerRow, 0, len(unmatched))
	for _, session := range unmatched {
		rows = append(rows, mergeOne(session, snapshot, m))
	}
	return rows
}

func mergeOne(session model.Session, snapshot []model.LedgerRow, m namematch.Matcher) model.LedgerRow {
	canonical := m.ResolveCanonical(session.Client, snapshot)

	row := model.LedgerRow{
		Date:        dateparse.Format(session.Date),
		ClientName:  canonical,
		Type:        ledger.TypeIndividual,
		MonthlyCalc: ledger.MonthlyCalcCell,
	}

	last, found := ledger.LastRowFor(snapshot, canonical, m)
	if !found {
		row.CurrentSession = sessioncount.Default
		row.Price = ledger.PriceUnknown
		row.Status = ledger.StatusNewClient
		applog.Info("no ledger history for client, appending as new",
			"client", canonical, "date", row.Date)
		return row
	}

	row.CurrentSession = sessioncount.Increment(last.CurrentSession)
	row.Price = last.Price
	row.PaymentDue = sessioncount.PaymentDue(row.CurrentSession, last.Price)
	applog.Info("continuing client package",
		"client", canonical, "date", row.Date,
		"progress", row.CurrentSession, "price", row.Price)
	return row
}

// Plan pairs a merged batch with its safe append position in the raw
// table snapshot: one contiguous block directly after the last
// non-empty row.
type Plan struct {
	StartRow int
	Rows     []model.LedgerRow
}

// PlanAppend computes the batch and where to write it.
func PlanAppend(unmatched []model.Session, raw [][]string, m namematch.Matcher) Plan {
	snapshot := ledger.ParseTable(raw)
	return Plan{
		StartRow: ledger.AppendStart(raw),
		Rows:     Merge(unmatched, snapshot, m),
	}
}
