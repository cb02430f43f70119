// Package calendar provides the event-source collaborator: "list the
// events inside this window". The core never talks to a calendar
// service directly; it consumes []model.CalendarEvent from a Source.
package calendar

import (
	"context"

	"sessionrec/internal/model"
	"sessionrec/internal/timewindow"
)

// Source lists calendar events whose start falls inside the window.
type Source interface {
	ListEvents(ctx context.Context, window timewindow.Window) ([]model.CalendarEvent, error)
}
