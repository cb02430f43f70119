// Package dateparse normalizes the heterogeneous date strings that show
// up across calendar payloads and ledger cells into a canonical
// calendar date (midnight UTC).
package dateparse

import (
	"fmt"
	"strings"
	"time"
)

const (
	// LayoutLedger is the ledger's date column format.
	LayoutLedger = "01/02/2006"
	// LayoutReport is the weekday-prefixed format used in report tabs.
	LayoutReport = "Mon 01/02"

	layoutISO   = "2006-01-02"
	layoutSlash = "1/2/2006"
)

// FormatError reports an unparseable date string. Callers recover from
// it locally (skip the row, keep the batch going).
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognized date format %q", e.Input)
}

// Parse accepts ISO-prefixed strings ("2024-10-07T00:00:00Z" truncates
// to the date, any time/zone suffix is ignored) and M/D/YYYY. The
// result is the calendar date at midnight UTC.
func Parse(text string) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, &FormatError{Input: text}
	}

	// ISO first: take the leading date component, drop the rest.
	if len(s) >= len(layoutISO) {
		if t, err := time.ParseInLocation(layoutISO, s[:len(layoutISO)], time.UTC); err == nil {
			return t, nil
		}
	}

	if t, err := time.ParseInLocation(layoutSlash, s, time.UTC); err == nil {
		return t, nil
	}

	return time.Time{}, &FormatError{Input: text}
}

// Format renders a date in the ledger's MM/DD/YYYY form. Parse(Format(d))
// round-trips for any date Parse produced.
func Format(d time.Time) string {
	return d.Format(LayoutLedger)
}

// FormatReport renders a date for report tabs ("Mon 10/07").
func FormatReport(d time.Time) string {
	return d.Format(LayoutReport)
}

// ParseReport reverses FormatReport. The report format has no year, so
// the caller supplies one (the active ledger year).
func ParseReport(text string, year int) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, &FormatError{Input: text}
	}
	t, err := time.ParseInLocation(LayoutReport, s, time.UTC)
	if err != nil {
		return time.Time{}, &FormatError{Input: text}
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// DateOf truncates a timestamp to its calendar date at midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
