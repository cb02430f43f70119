package calendar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	applog "sessionrec/internal/log"
	"sessionrec/internal/model"
	"sessionrec/internal/timewindow"
)

// Cap on expanded occurrences per recurring event, so a malformed RRULE
// cannot blow up a run.
const maxOccurrencesPerEvent = 1000

// ICSSource reads an iCalendar feed from a local file or an HTTP(S)
// URL. Recurring appointments (weekly training slots) are expanded into
// concrete events inside the requested window.
type ICSSource struct {
	ID       string
	Location string // file path or http(s) URL

	client *http.Client
}

// NewICSSource constructs an ICS-backed source.
func NewICSSource(id, location string) *ICSSource {
	return &ICSSource{
		ID:       id,
		Location: location,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// ListEvents fetches and parses the feed, then expands every VEVENT
// into occurrences inside the window. Individual events that fail to
// parse are logged and skipped; the rest of the feed still loads.
func (s *ICSSource) ListEvents(ctx context.Context, window timewindow.Window) ([]model.CalendarEvent, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		applog.Error("ics parse failed", err, "id", s.ID)
		return nil, err
	}

	events := make([]model.CalendarEvent, 0)
	for _, ve := range cal.Events() {
		occ, perr := s.expandVEvent(ve, window)
		if perr != nil {
			// Log and skip this event, keep the others.
			applog.Error("ics vevent skipped", perr, "id", s.ID)
			continue
		}
		events = append(events, occ...)
	}

	applog.Info("ics events listed", "id", s.ID, "window", window.String(), "event_count", len(events))
	return events, nil
}

func (s *ICSSource) fetch(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(s.Location, "http://") || strings.HasPrefix(s.Location, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, errors.New(resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(s.Location)
}

// expandVEvent turns one VEVENT into the concrete events that start
// inside the window, expanding RRULE recurrences and honoring EXDATE.
func (s *ICSSource) expandVEvent(ve *ical.VEvent, window timewindow.Window) ([]model.CalendarEvent, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	uid := uidProp.Value

	var summary, description string
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		description = p.Value
	}

	start, allDay, err := eventStart(ve)
	if err != nil {
		return nil, err
	}

	base := model.CalendarEvent{
		SourceID:    s.ID,
		UID:         uid,
		Summary:     summary,
		Description: description,
		AllDay:      allDay,
	}

	var rawRRule string
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRRule = p.Value
	}

	// Single, non-recurring event.
	if rawRRule == "" {
		if !window.Contains(start) {
			return nil, nil
		}
		ev := base
		ev.Start = start
		return []model.CalendarEvent{ev}, nil
	}

	r, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates(ve) {
		set.ExDate(ex.In(start.Location()))
	}

	// Between() wants instants; cover the window's full days in the
	// event's own location.
	loc := start.Location()
	rangeStart := time.Date(window.Start.Year(), window.Start.Month(), window.Start.Day(), 0, 0, 0, 0, loc)
	rangeEnd := time.Date(window.End.Year(), window.End.Month(), window.End.Day(), 23, 59, 59, 0, loc)

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > maxOccurrencesPerEvent {
		applog.Warn("recurrence expansion truncated", "uid", uid, "cap", maxOccurrencesPerEvent)
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	out := make([]model.CalendarEvent, 0, len(occTimes))
	for _, t := range occTimes {
		ev := base
		ev.Start = t
		out = append(out, ev)
	}
	return out, nil
}

// eventStart resolves DTSTART, detecting all-day events by their
// VALUE=DATE parameter or a date-only value.
func eventStart(ve *ical.VEvent) (time.Time, bool, error) {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil || prop.Value == "" {
		return time.Time{}, false, errors.New("missing DTSTART")
	}

	allDay := !strings.Contains(prop.Value, "T")
	if params := prop.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			allDay = true
		}
	}

	if allDay {
		t, err := time.ParseInLocation("20060102", prop.Value, time.UTC)
		if err != nil {
			return time.Time{}, false, err
		}
		return t, true, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return time.Time{}, false, err
	}
	return start, false, nil
}

// exDates collects EXDATE values; the property can repeat and each
// value can hold a comma-separated list.
func exDates(ve *ical.VEvent) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// parseICSTime parses basic ICS DATE / DATE-TIME / UTC forms.
func parseICSTime(v string) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	default:
		return time.ParseInLocation("20060102", v, time.UTC)
	}
}
