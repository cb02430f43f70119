// Package pipeline drives one reconciliation run end to end: read the
// ledger, pull last week's events, reconcile, publish the report tabs,
// and append the unmatched sessions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sessionrec/internal/calendar"
	"sessionrec/internal/config"
	"sessionrec/internal/ledger"
	"sessionrec/internal/log"
	"sessionrec/internal/merge"
	"sessionrec/internal/model"
	"sessionrec/internal/namematch"
	"sessionrec/internal/reconcile"
	"sessionrec/internal/report"
	"sessionrec/internal/tablestore"
	"sessionrec/internal/timewindow"
)

// Runner holds the collaborators for a run. Zero Year means the year of
// the run's wall clock.
type Runner struct {
	Store    tablestore.Store
	Sources  []calendar.Source
	Year     int
	Location *time.Location
	Backup   bool
	Matcher  namematch.Matcher

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Summary is what a run did, for logging and the CLI.
type Summary struct {
	RunID     string
	Table     string
	Window    timewindow.Window
	Events    int
	Matched   int
	Unmatched int
	Appended  int
	BackupTab string
}

// FromConfig builds a Runner from configuration: opens the store
// (wrapped with retry), instantiates the calendar sources, and builds
// the name matcher from the configured threshold.
func FromConfig(cfg *config.Config) (*Runner, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	var inner tablestore.Store
	switch cfg.Store.Kind {
	case "sqlite":
		inner, err = tablestore.OpenSQLite(cfg.Store.Path)
	default:
		inner, err = tablestore.OpenCSV(cfg.Store.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store at %s: %w", cfg.Store.Kind, cfg.Store.Path, err)
	}

	sources := make([]calendar.Source, 0, len(cfg.Calendars))
	for _, cc := range cfg.Calendars {
		switch cc.Kind {
		case "json":
			sources = append(sources, calendar.NewJSONSource(cc.ID, cc.Location))
		default:
			sources = append(sources, calendar.NewICSSource(cc.ID, cc.Location))
		}
	}

	return &Runner{
		Store:    tablestore.NewRetry(inner),
		Sources:  sources,
		Year:     cfg.Year,
		Location: loc,
		Backup:   cfg.Backup,
		Matcher:  namematch.NewMatcher(cfg.SimilarityThreshold),
	}, nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// tableName resolves the ledger table for the run. A configured year
// wins; otherwise the first table carrying the ledger prefix, falling
// back to the wall-clock year if none exists yet.
func (r *Runner) tableName(now time.Time) (string, error) {
	if r.Year != 0 {
		return ledger.TableName(r.Year), nil
	}
	name, err := r.Store.FindTable(ledger.TableNamePrefix)
	if err == nil {
		return name, nil
	}
	if errors.Is(err, tablestore.ErrTableNotFound) {
		return ledger.TableName(now.Year()), nil
	}
	return "", err
}

// Run executes one reconciliation pass over the previous full week.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	now := r.now()
	if r.Location != nil {
		now = now.In(r.Location)
	}
	window := timewindow.PreviousWeek(now)

	table, err := r.tableName(now)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger table: %w", err)
	}
	log.Info("run starting", "run_id", runID, "table", table, "window", window.String())

	raw, err := r.Store.ReadTable(table)
	if err != nil {
		if errors.Is(err, tablestore.ErrTableNotFound) {
			// First run against an empty workbook: start the table.
			if err := r.Store.WriteRows(table, 1, [][]string{ledger.Header}); err != nil {
				return nil, fmt.Errorf("create ledger table %s: %w", table, err)
			}
			raw = [][]string{ledger.Header}
		} else {
			return nil, fmt.Errorf("read ledger table %s: %w", table, err)
		}
	}
	rows := ledger.ParseTable(raw)

	summary := &Summary{RunID: runID, Table: table, Window: window}

	if r.Backup {
		backup, err := r.Store.CreateBackup(table)
		if err != nil {
			return nil, fmt.Errorf("backup ledger table %s: %w", table, err)
		}
		summary.BackupTab = backup
		log.Info("ledger backed up", "run_id", runID, "backup", backup)
	}

	events := r.collectEvents(ctx, window)
	summary.Events = len(events)

	roster := ledger.Roster(rows)
	idx := ledger.BuildIndex(rows, window)
	result := reconcile.Reconcile(events, window, roster, idx)

	unmatched := result.Unmatched()
	summary.Matched = len(result.Sessions) - len(unmatched)
	summary.Unmatched = len(unmatched)

	if err := r.publishReports(rows, result); err != nil {
		return nil, err
	}

	plan := merge.PlanAppend(unmatched, raw, r.Matcher)
	if len(plan.Rows) > 0 {
		if err := r.appendRows(table, plan); err != nil {
			return nil, err
		}
		summary.Appended = len(plan.Rows)
	}

	if err := r.publishRevenue(table, rows, now); err != nil {
		return nil, err
	}

	order := []string{table, report.TabClientList, report.TabLastWeek, report.TabSessions, report.TabRevenue}
	if err := r.Store.ReorderTabs(order); err != nil {
		return nil, fmt.Errorf("reorder tabs: %w", err)
	}

	log.Info("run finished",
		"run_id", runID,
		"events", summary.Events,
		"matched", summary.Matched,
		"unmatched", summary.Unmatched,
		"appended", summary.Appended)
	return summary, nil
}

// collectEvents gathers events from every source. A failing source is
// logged and skipped so one dead feed does not sink the run.
func (r *Runner) collectEvents(ctx context.Context, window timewindow.Window) []model.CalendarEvent {
	var events []model.CalendarEvent
	for _, src := range r.Sources {
		evs, err := src.ListEvents(ctx, window)
		if err != nil {
			log.Error("calendar source failed, skipping", err)
			continue
		}
		events = append(events, evs...)
	}
	return events
}

// publishReports rewrites the three weekly report tabs.
func (r *Runner) publishReports(rows []model.LedgerRow, result reconcile.Result) error {
	tabs := []struct {
		name string
		grid [][]string
	}{
		{report.TabClientList, report.ClientListRows(ledger.CountSessions(rows))},
		{report.TabLastWeek, report.LastWeekRows(result)},
		{report.TabSessions, report.SessionsRows(result)},
	}
	for _, tab := range tabs {
		if err := r.Store.ClearOrCreate(tab.name); err != nil {
			return fmt.Errorf("clear tab %s: %w", tab.name, err)
		}
		if err := r.Store.WriteRows(tab.name, 1, tab.grid); err != nil {
			return fmt.Errorf("write tab %s: %w", tab.name, err)
		}
	}
	return nil
}

// appendRows grows the ledger table and writes the merge batch at the
// planned position.
func (r *Runner) appendRows(table string, plan merge.Plan) error {
	cells := make([][]string, len(plan.Rows))
	for i, row := range plan.Rows {
		cells[i] = ledger.CellsFromRow(row)
	}
	if err := r.Store.AppendCapacity(table, plan.StartRow+len(cells)-1); err != nil {
		return fmt.Errorf("grow ledger table %s: %w", table, err)
	}
	if err := r.Store.WriteRows(table, plan.StartRow, cells); err != nil {
		return fmt.Errorf("append to ledger table %s: %w", table, err)
	}
	return nil
}

// publishRevenue rebuilds the year-over-year summary tab. Last year's
// ledger is optional; a missing table just leaves that column empty.
func (r *Runner) publishRevenue(table string, rows []model.LedgerRow, now time.Time) error {
	year := r.Year
	if year == 0 {
		year = now.Year()
	}

	var previous []report.Sale
	prevRaw, err := r.Store.ReadTable(ledger.TableName(year - 1))
	switch {
	case err == nil:
		previous = report.ParseSales(ledger.ParseTable(prevRaw), year-1)
	case errors.Is(err, tablestore.ErrTableNotFound):
		// No prior-year ledger in this workbook.
	default:
		return fmt.Errorf("read prior-year ledger: %w", err)
	}
	current := report.ParseSales(rows, year)

	grid := report.RevenueSummaryRows(current, previous, year)
	if err := r.Store.ClearOrCreate(report.TabRevenue); err != nil {
		return fmt.Errorf("clear tab %s: %w", report.TabRevenue, err)
	}
	if err := r.Store.WriteRows(report.TabRevenue, 1, grid); err != nil {
		return fmt.Errorf("write tab %s: %w", report.TabRevenue, err)
	}
	return nil
}
