package calendar

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"sessionrec/internal/dateparse"
	applog "sessionrec/internal/log"
	"sessionrec/internal/model"
	"sessionrec/internal/timewindow"
)

// JSONSource reads an exported event feed in the provider's event shape:
//
//	{"items": [{"id": ..., "summary": ..., "description": ...,
//	            "start": {"dateTime": ... | "date": ...}}]}
//
// Timed events carry start.dateTime (RFC3339), all-day events carry
// start.date (YYYY-MM-DD).
type JSONSource struct {
	ID   string
	Path string
}

// NewJSONSource constructs a feed-file source.
func NewJSONSource(id, path string) *JSONSource {
	return &JSONSource{ID: id, Path: path}
}

type jsonEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type jsonEvent struct {
	ID          string        `json:"id"`
	Summary     string        `json:"summary"`
	Description string        `json:"description"`
	Start       jsonEventTime `json:"start"`
}

type jsonFeed struct {
	Items []jsonEvent `json:"items"`
}

// ListEvents loads the feed and returns the events starting inside the
// window. Items with unparseable starts are logged and skipped.
func (s *JSONSource) ListEvents(_ context.Context, window timewindow.Window) ([]model.CalendarEvent, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}

	var feed jsonFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, err
	}

	events := make([]model.CalendarEvent, 0, len(feed.Items))
	for _, item := range feed.Items {
		start, allDay, err := parseFeedStart(item.Start)
		if err != nil {
			applog.Warn("event start unparseable, skipping event",
				"id", s.ID, "event_id", item.ID, "dateTime", item.Start.DateTime, "date", item.Start.Date)
			continue
		}
		if !window.Contains(start) {
			continue
		}
		events = append(events, model.CalendarEvent{
			SourceID:    s.ID,
			UID:         item.ID,
			Summary:     item.Summary,
			Description: item.Description,
			Start:       start,
			AllDay:      allDay,
		})
	}

	applog.Info("json feed events listed", "id", s.ID, "window", window.String(), "event_count", len(events))
	return events, nil
}

func parseFeedStart(t jsonEventTime) (time.Time, bool, error) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false, err
		}
		return parsed, false, nil
	}
	parsed, err := dateparse.Parse(t.Date)
	if err != nil {
		return time.Time{}, true, err
	}
	return parsed, true, nil
}
