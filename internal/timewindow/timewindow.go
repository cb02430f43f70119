// Package timewindow defines the reconciliation window: the date range
// over which calendar events are compared to the ledger, typically the
// prior calendar week.
package timewindow

import (
	"time"

	"sessionrec/internal/dateparse"
)

// Window is an inclusive date range. Start and End are calendar dates
// at midnight UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of t falls inside the
// window (inclusive on both ends).
func (w Window) Contains(t time.Time) bool {
	d := dateparse.DateOf(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// String renders the window for logs, "10/07/2024..10/13/2024".
func (w Window) String() string {
	return dateparse.Format(w.Start) + ".." + dateparse.Format(w.End)
}

// PreviousWeek returns the Monday-to-Sunday week preceding the week
// that contains now.
func PreviousWeek(now time.Time) Window {
	today := dateparse.DateOf(now)

	// Days since Monday of the current week (Monday=0 ... Sunday=6).
	sinceMonday := (int(today.Weekday()) + 6) % 7

	start := today.AddDate(0, 0, -(sinceMonday + 7))
	return Window{Start: start, End: start.AddDate(0, 0, 6)}
}
