package tablestore

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Both implementations must behave identically through the Store
// interface, so each scenario runs against both.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	csvStore, err := OpenCSV(filepath.Join(t.TempDir(), "workbook"))
	if err != nil {
		t.Fatalf("open csv store: %v", err)
	}
	sqlStore, err := OpenSQLite(filepath.Join(t.TempDir(), "workbook.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlStore.Close() })
	return map[string]Store{"csv": csvStore, "sqlite": sqlStore}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.ClearOrCreate("Ledger 2024"); err != nil {
				t.Fatalf("create: %v", err)
			}
			rows := [][]string{
				{"DATE", "CLIENT NAME"},
				{"10/07/2024", "Dale Scaiano"},
			}
			if err := s.WriteRows("Ledger 2024", 1, rows); err != nil {
				t.Fatalf("write: %v", err)
			}

			got, err := s.ReadTable("Ledger 2024")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 2 || got[1][0] != "10/07/2024" || got[1][1] != "Dale Scaiano" {
				t.Fatalf("read back %v", got)
			}
		})
	}
}

func TestWriteRowsAtOffset(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.ClearOrCreate("T"); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := s.WriteRows("T", 1, [][]string{{"header", "row"}}); err != nil {
				t.Fatalf("write header: %v", err)
			}
			if err := s.WriteRows("T", 4, [][]string{{"a", "b"}}); err != nil {
				t.Fatalf("write offset: %v", err)
			}
			got, err := s.ReadTable("T")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 4 {
				t.Fatalf("table has %d rows, want 4", len(got))
			}
			if got[3][0] != "a" {
				t.Fatalf("row 4 = %v", got[3])
			}
		})
	}
}

func TestReadMissingTable(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.ReadTable("nope"); !errors.Is(err, ErrTableNotFound) {
				t.Fatalf("expected ErrTableNotFound, got %v", err)
			}
			if _, err := s.FindTable("nope"); !errors.Is(err, ErrTableNotFound) {
				t.Fatalf("FindTable: expected ErrTableNotFound, got %v", err)
			}
		})
	}
}

func TestFindTableBySubstring(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, tab := range []string{"CLIENT LIST", "Sales & Sessions Completed 2024"} {
				if err := s.ClearOrCreate(tab); err != nil {
					t.Fatalf("create %q: %v", tab, err)
				}
			}
			found, err := s.FindTable("Sales & Sessions Completed")
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if found != "Sales & Sessions Completed 2024" {
				t.Fatalf("found %q", found)
			}
		})
	}
}

func TestClearOrCreateEmptiesExisting(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.ClearOrCreate("T"); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := s.WriteRows("T", 1, [][]string{{"x", "y"}}); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := s.ClearOrCreate("T"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			got, err := s.ReadTable("T")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("cleared table still has %d rows", len(got))
			}
		})
	}
}

func TestCreateBackupReplacesOld(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.ClearOrCreate("Sales"); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := s.WriteRows("Sales", 1, [][]string{{"h1", "h2"}, {"a", "b"}}); err != nil {
				t.Fatalf("write: %v", err)
			}

			first, err := s.CreateBackup("Sales")
			if err != nil {
				t.Fatalf("first backup: %v", err)
			}
			second, err := s.CreateBackup("Sales")
			if err != nil {
				t.Fatalf("second backup: %v", err)
			}

			names, err := s.Tables()
			if err != nil {
				t.Fatalf("tables: %v", err)
			}
			backups := 0
			for _, n := range names {
				if strings.HasPrefix(n, "BACKUP_Sales") {
					backups++
					if n != second {
						t.Fatalf("stale backup %q still present (first was %q)", n, first)
					}
				}
			}
			if backups != 1 {
				t.Fatalf("found %d backups, want exactly 1", backups)
			}

			got, err := s.ReadTable(second)
			if err != nil {
				t.Fatalf("read backup: %v", err)
			}
			if len(got) != 2 || got[1][0] != "a" {
				t.Fatalf("backup contents %v", got)
			}
		})
	}
}

func TestReorderTabs(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, tab := range []string{"CLIENT LIST", "LAST WEEK", "Sales 2024", "SESSIONS"} {
				if err := s.ClearOrCreate(tab); err != nil {
					t.Fatalf("create %q: %v", tab, err)
				}
			}
			if err := s.ReorderTabs([]string{"Sales 2024", "LAST WEEK", "SESSIONS", "CLIENT LIST"}); err != nil {
				t.Fatalf("reorder: %v", err)
			}
			names, err := s.Tables()
			if err != nil {
				t.Fatalf("tables: %v", err)
			}
			want := []string{"Sales 2024", "LAST WEEK", "SESSIONS", "CLIENT LIST"}
			for i, n := range want {
				if names[i] != n {
					t.Fatalf("tab order %v, want %v", names, want)
				}
			}
		})
	}
}

// flaky fails with a transient error a fixed number of times before
// delegating to the inner store.
type flaky struct {
	Store
	failures int
}

func (f *flaky) ReadTable(name string) ([][]string, error) {
	if f.failures > 0 {
		f.failures--
		return nil, Transient(errors.New("rate limited"))
	}
	return f.Store.ReadTable(name)
}

func TestRetryRecoversTransient(t *testing.T) {
	t.Parallel()
	inner, err := OpenCSV(filepath.Join(t.TempDir(), "wb"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := inner.ClearOrCreate("T"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := inner.WriteRows("T", 1, [][]string{{"a", "b"}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := &Retry{Inner: &flaky{Store: inner, failures: 2}, Attempts: 4, Base: time.Millisecond}
	rows, err := r.ReadTable("T")
	if err != nil {
		t.Fatalf("retry should recover: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
}

func TestRetryGivesUp(t *testing.T) {
	t.Parallel()
	inner, err := OpenCSV(filepath.Join(t.TempDir(), "wb"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	r := &Retry{Inner: &flaky{Store: inner, failures: 10}, Attempts: 2, Base: time.Millisecond}
	if _, err := r.ReadTable("T"); err == nil {
		t.Fatal("exhausted retries should surface the error")
	}
}

func TestRetryPassesThroughPermanent(t *testing.T) {
	t.Parallel()
	inner, err := OpenCSV(filepath.Join(t.TempDir(), "wb"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	r := NewRetry(inner)
	if _, err := r.ReadTable("missing"); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("permanent error should pass through, got %v", err)
	}
}

func TestClearOrCreateRegistersNewTabsInOrder(t *testing.T) {
	t.Parallel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, tab := range []string{"Ledger 2024", "CLIENT LIST", "SESSIONS"} {
				if err := s.ClearOrCreate(tab); err != nil {
					t.Fatalf("create %s: %v", tab, err)
				}
			}
			// Re-clearing an existing tab must keep its position.
			if err := s.ClearOrCreate("CLIENT LIST"); err != nil {
				t.Fatalf("re-clear: %v", err)
			}

			names, err := s.Tables()
			if err != nil {
				t.Fatalf("Tables: %v", err)
			}
			want := []string{"Ledger 2024", "CLIENT LIST", "SESSIONS"}
			if len(names) != len(want) {
				t.Fatalf("tabs = %v, want %v", names, want)
			}
			for i := range want {
				if names[i] != want[i] {
					t.Fatalf("tabs = %v, want %v", names, want)
				}
			}
		})
	}
}
