// Package reconcile matches one window's calendar events against the
// client roster and the ledger, producing per-client session activity
// and MATCH / NO MATCH status for every observed session.
package reconcile

import (
	"sort"

	"sessionrec/internal/dateparse"
	"sessionrec/internal/ledger"
	applog "sessionrec/internal/log"
	"sessionrec/internal/model"
	"sessionrec/internal/namematch"
	"sessionrec/internal/timewindow"
)

// Result is one reconciliation pass over a window.
type Result struct {
	// Sessions holds every matched event's session, sorted by
	// (date, time) ascending.
	Sessions []model.Session
	// ByClient groups the sessions per matched roster client.
	ByClient map[string]model.ClientActivity
}

// Unmatched returns the sessions with no ledger row, in Sessions order.
func (r Result) Unmatched() []model.Session {
	var out []model.Session
	for _, s := range r.Sessions {
		if s.Status == model.StatusNoMatch {
			out = append(out, s)
		}
	}
	return out
}

// Reconcile walks the events of one window against the roster and the
// ledger's exact (client, date) index.
//
// Per-event failures never abort the pass: events with no usable start
// or no roster match are logged and skipped. An event matches at most
// one client, roster insertion order, first match wins. Two events on
// the same day are two sessions.
func Reconcile(events []model.CalendarEvent, window timewindow.Window, roster []string, idx *ledger.Index) Result {
	result := Result{ByClient: make(map[string]model.ClientActivity)}

	for _, ev := range events {
		if ev.Start.IsZero() {
			applog.Warn("event has no start, skipping",
				"source", ev.SourceID, "uid", ev.UID, "summary", ev.Summary)
			continue
		}
		date := dateparse.DateOf(ev.Start)
		if !window.Contains(date) {
			continue
		}

		client, ok := matchClient(ev, roster)
		if !ok {
			applog.Debug("event matched no client", "uid", ev.UID, "summary", ev.Summary)
			continue
		}

		status := model.StatusNoMatch
		if row, found := idx.Lookup(client, date); found {
			status = model.StatusMatch
			// Same (client, date) with a different type or price is
			// still a MATCH; log the ledger side for review.
			applog.Debug("ledger row matched",
				"client", client, "date", dateparse.Format(date),
				"ledger_type", row.Type, "ledger_price", row.Price)
		}

		result.Sessions = append(result.Sessions, model.Session{
			Client: client,
			Date:   date,
			Start:  ev.Start,
			Status: status,
		})
	}

	sort.SliceStable(result.Sessions, func(a, b int) bool {
		return result.Sessions[a].Start.Before(result.Sessions[b].Start)
	})

	for _, s := range result.Sessions {
		activity := result.ByClient[s.Client]
		activity.Client = s.Client
		activity.Count++
		activity.Dates = append(activity.Dates, s.Date)
		result.ByClient[s.Client] = activity
	}

	applog.Info("reconciliation pass complete",
		"window", window.String(),
		"events", len(events),
		"sessions", len(result.Sessions),
		"clients", len(result.ByClient),
		"unmatched", len(result.Unmatched()))
	return result
}

// matchClient attributes an event to a client. With a roster the
// roster-dictionary match is authoritative; without one the crude
// first-two-tokens extraction of the title is the explicit fallback.
func matchClient(ev model.CalendarEvent, roster []string) (string, bool) {
	if len(roster) > 0 {
		return namematch.MatchRoster(ev.Summary, ev.Description, roster)
	}
	return namematch.ExtractName(ev.Summary)
}
