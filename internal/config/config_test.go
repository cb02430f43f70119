package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conf", "sessionrec.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Kind != "csv" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessionrec.yaml")
	cfg := DefaultConfig()
	cfg.Year = 2024
	cfg.Schedule = "0 6 * * 1"
	cfg.Store = StoreConfig{Kind: "sqlite", Path: "ledger.db"}
	cfg.Calendars = []CalendarConfig{{ID: "training", Kind: "ics", Location: "https://example.com/cal.ics"}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Year != 2024 || got.Schedule != "0 6 * * 1" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.Store.Kind != "sqlite" || got.Store.Path != "ledger.db" {
		t.Fatalf("store = %+v", got.Store)
	}
	if len(got.Calendars) != 1 || got.Calendars[0].ID != "training" {
		t.Fatalf("calendars = %+v", got.Calendars)
	}
}

func TestNormalizeRepairsBadValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		SimilarityThreshold: 3,
		LogLevel:            "verbose",
		Store:               StoreConfig{Kind: "oracle"},
		Calendars:           []CalendarConfig{{ID: "a", Location: "a.ics"}},
	}
	cfg.Normalize()

	if cfg.SimilarityThreshold != 0.85 {
		t.Fatalf("threshold = %v", cfg.SimilarityThreshold)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.Store.Kind != "csv" {
		t.Fatalf("store kind = %q", cfg.Store.Kind)
	}
	if cfg.Calendars[0].Kind != "ics" {
		t.Fatalf("calendar kind = %q", cfg.Calendars[0].Kind)
	}
}
