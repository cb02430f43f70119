package tablestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps a workbook in a single SQLite database: one record
// per (tab, row position), cells JSON-encoded. Serves as the local
// ledger mirror.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a workbook database.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tabs (
  name     TEXT PRIMARY KEY,
  position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tab_rows (
  tab   TEXT    NOT NULL,
  pos   INTEGER NOT NULL,
  cells TEXT    NOT NULL,
  PRIMARY KEY (tab, pos)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create workbook schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) tabExists(name string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM tabs WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) ReadTable(name string) ([][]string, error) {
	ok, err := s.tabExists(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrTableNotFound)
	}

	rows, err := s.db.Query(`SELECT pos, cells FROM tab_rows WHERE tab = ? ORDER BY pos`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var pos int
		var raw string
		if err := rows.Scan(&pos, &raw); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("decode row %d of %q: %w", pos, name, err)
		}
		// Positions are 1-based and may be sparse after capacity growth.
		for len(out) < pos-1 {
			out = append(out, []string{})
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) putRow(tx *sql.Tx, name string, pos int, cells []string) error {
	if cells == nil {
		cells = []string{}
	}
	raw, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`
INSERT INTO tab_rows (tab, pos, cells) VALUES (?, ?, ?)
ON CONFLICT(tab, pos) DO UPDATE SET cells = excluded.cells`, name, pos, string(raw))
	return err
}

func (s *SQLiteStore) WriteRows(name string, startRow int, rowData [][]string) error {
	if startRow < 1 {
		return fmt.Errorf("start row %d out of range", startRow)
	}
	if ok, err := s.tabExists(name); err != nil {
		return err
	} else if !ok {
		if err := s.ClearOrCreate(name); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, cells := range rowData {
		if err := s.putRow(tx, name, startRow+i, cells); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendCapacity(name string, n int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var have sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(pos) FROM tab_rows WHERE tab = ?`, name).Scan(&have); err != nil {
		return err
	}
	for pos := int(have.Int64) + 1; pos <= n; pos++ {
		if err := s.putRow(tx, name, pos, nil); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ClearOrCreate(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tab_rows WHERE tab = ?`, name); err != nil {
		return err
	}
	// INSERT ... SELECT needs a WHERE clause before an upsert clause,
	// or SQLite rejects the statement as ambiguous.
	if _, err := tx.Exec(`
INSERT INTO tabs (name, position)
SELECT ?, COALESCE(MAX(position), 0) + 1 FROM tabs WHERE true
ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) FindTable(substring string) (string, error) {
	names, err := s.Tables()
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.Contains(n, substring) {
			return n, nil
		}
	}
	return "", fmt.Errorf("%q: %w", substring, ErrTableNotFound)
}

func (s *SQLiteStore) CreateBackup(name string) (string, error) {
	rows, err := s.ReadTable(name)
	if err != nil {
		return "", err
	}

	names, err := s.Tables()
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if strings.HasPrefix(n, "BACKUP_"+name) {
			if err := s.dropTab(n); err != nil {
				return "", err
			}
		}
	}

	backup := fmt.Sprintf("BACKUP_%s_%s", name, time.Now().Format("20060102_150405"))
	if err := s.ClearOrCreate(backup); err != nil {
		return "", err
	}
	if len(rows) > 0 {
		if err := s.WriteRows(backup, 1, rows); err != nil {
			return "", err
		}
	}
	return backup, nil
}

func (s *SQLiteStore) dropTab(name string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM tab_rows WHERE tab = ?`, name); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tabs WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReorderTabs(order []string) error {
	names, err := s.Tables()
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	reordered := make([]string, 0, len(names))
	taken := make(map[string]bool)
	for _, n := range order {
		if present[n] && !taken[n] {
			reordered = append(reordered, n)
			taken[n] = true
		}
	}
	for _, n := range names {
		if !taken[n] {
			reordered = append(reordered, n)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i, n := range reordered {
		if _, err := tx.Exec(`UPDATE tabs SET position = ? WHERE name = ?`, i+1, n); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Tables() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM tabs ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
