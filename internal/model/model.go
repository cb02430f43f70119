package model

import "time"

// MatchStatus classifies a session against the ledger.
type MatchStatus string

const (
	// StatusMatch means the ledger already holds a row for the session's
	// (canonical client, date) pair.
	StatusMatch MatchStatus = "MATCH"
	// StatusNoMatch means the session was seen on the calendar but has no
	// ledger row yet.
	StatusNoMatch MatchStatus = "NO MATCH"
)

// CalendarEvent is an event as delivered by a calendar source. Read-only
// input to the reconciler; free text throughout.
type CalendarEvent struct {
	SourceID string // calendar source ID (config entry)
	UID      string // provider event ID, used for de-dup and logging

	Summary     string
	Description string

	// Start is the event start in the source's timezone. All-day events
	// carry a midnight Start.
	Start  time.Time
	AllDay bool
}

// Session is one observed training session, derived from a calendar
// event during reconciliation. Immutable once produced.
type Session struct {
	Client string // canonical client display name

	// Date is the calendar date of the session (midnight, the time
	// component is carried separately in Start).
	Date  time.Time
	Start time.Time

	Status MatchStatus
}

// ClientActivity groups a client's sessions within one reconciliation
// window.
type ClientActivity struct {
	Client string
	// Count is the number of matched events, not distinct dates: two
	// events on the same day are two sessions.
	Count int
	// Dates holds one entry per event, ordered by event start.
	Dates []time.Time
}

// LedgerRow is one record of the sales table. Column order is the
// stable positional schema of the ledger.
type LedgerRow struct {
	Date           string // MM/DD/YYYY
	ClientName     string
	Type           string // session type, "Individual" for appended rows
	CurrentSession string // package progress, "C of T"
	Price          string // "$N.NN" or a placeholder
	PaymentDue     string // payment annotation or empty
	MonthlyCalc    string // monthly-calc placeholder column
	Status         string // status tag, e.g. "NEW CLIENT"
}
