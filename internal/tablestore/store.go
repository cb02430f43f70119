// Package tablestore is the external-store collaborator boundary. The
// core only ever sees ordered rows of ordered string cells (row 1 =
// headers) behind the Store interface. What actually holds them, a CSV
// workbook directory or a SQLite database, is this package's business.
package tablestore

import (
	"errors"
	"fmt"
	"time"

	applog "sessionrec/internal/log"
)

// ErrTableNotFound reports a missing table/tab. Fatal for the phase
// that needed the table; the run does not continue that phase.
var ErrTableNotFound = errors.New("table not found")

// TransientError marks a store failure worth retrying (rate limiting,
// busy database). Implementations wrap such failures with Transient.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient store error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Store is the tabular collaborator interface consumed by the core.
type Store interface {
	// ReadTable returns the full table snapshot; row 1 = headers.
	ReadTable(name string) ([][]string, error)
	// WriteRows writes rows starting at the 1-based row startRow,
	// overwriting whatever is there.
	WriteRows(name string, startRow int, rows [][]string) error
	// AppendCapacity grows the table to hold at least n rows.
	AppendCapacity(name string, n int) error
	// ClearOrCreate empties the named table, creating it if missing.
	ClearOrCreate(name string) error
	// FindTable returns the first table whose name contains substring.
	FindTable(substring string) (string, error)
	// CreateBackup snapshots a table to BACKUP_<name>_<timestamp>,
	// replacing any previous backup of the same table.
	CreateBackup(name string) (string, error)
	// ReorderTabs moves the named tables to the front, in order.
	ReorderTabs(order []string) error
	// Tables lists all table names in tab order.
	Tables() ([]string, error)
}

// Retry wraps a Store with exponential backoff on transient errors.
// Non-transient errors pass through untouched. This is collaborator
// behavior, not core logic: the core never retries.
type Retry struct {
	Inner    Store
	Attempts int
	Base     time.Duration
}

// NewRetry wraps inner with the default policy (4 attempts, 250ms base,
// doubling).
func NewRetry(inner Store) *Retry {
	return &Retry{Inner: inner, Attempts: 4, Base: 250 * time.Millisecond}
}

func (r *Retry) do(op string, f func() error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := r.Base

	var err error
	for i := 0; i < attempts; i++ {
		err = f()
		if err == nil || !IsTransient(err) {
			return err
		}
		if i < attempts-1 {
			applog.Warn("transient store error, backing off",
				"op", op, "attempt", i+1, "delay", delay.String())
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, err)
}

func (r *Retry) ReadTable(name string) ([][]string, error) {
	var rows [][]string
	err := r.do("read "+name, func() error {
		var err error
		rows, err = r.Inner.ReadTable(name)
		return err
	})
	return rows, err
}

func (r *Retry) WriteRows(name string, startRow int, rows [][]string) error {
	return r.do("write "+name, func() error {
		return r.Inner.WriteRows(name, startRow, rows)
	})
}

func (r *Retry) AppendCapacity(name string, n int) error {
	return r.do("grow "+name, func() error {
		return r.Inner.AppendCapacity(name, n)
	})
}

func (r *Retry) ClearOrCreate(name string) error {
	return r.do("clear "+name, func() error {
		return r.Inner.ClearOrCreate(name)
	})
}

func (r *Retry) FindTable(substring string) (string, error) {
	var found string
	err := r.do("find "+substring, func() error {
		var err error
		found, err = r.Inner.FindTable(substring)
		return err
	})
	return found, err
}

func (r *Retry) CreateBackup(name string) (string, error) {
	var backup string
	err := r.do("backup "+name, func() error {
		var err error
		backup, err = r.Inner.CreateBackup(name)
		return err
	})
	return backup, err
}

func (r *Retry) ReorderTabs(order []string) error {
	return r.do("reorder tabs", func() error {
		return r.Inner.ReorderTabs(order)
	})
}

func (r *Retry) Tables() ([]string, error) {
	var names []string
	err := r.do("list tables", func() error {
		var err error
		names, err = r.Inner.Tables()
		return err
	})
	return names, err
}
