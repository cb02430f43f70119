package tablestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CSVStore keeps a workbook as a directory of CSV files, one per tab,
// with tab order held in an index file. Writes are atomic (temp file +
// rename), following the same discipline as the config loader.
type CSVStore struct {
	dir string
}

const csvIndexFile = "tabs.index"

// OpenCSV opens (or creates) a workbook directory.
func OpenCSV(dir string) (*CSVStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("workbook dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &CSVStore{dir: dir}, nil
}

// tabFile maps a tab name to its file name. Anything unsafe for a file
// system collapses to '_'.
func tabFile(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return safe + ".csv"
}

func (s *CSVStore) readIndex() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, csvIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (s *CSVStore) writeIndex(names []string) error {
	content := strings.Join(names, "\n")
	if content != "" {
		content += "\n"
	}
	return atomicWrite(filepath.Join(s.dir, csvIndexFile), []byte(content))
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tablestore-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *CSVStore) hasTab(name string) (bool, error) {
	names, err := s.readIndex()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *CSVStore) readAll(name string) ([][]string, error) {
	ok, err := s.hasTab(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrTableNotFound)
	}

	f, err := os.Open(filepath.Join(s.dir, tabFile(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func (s *CSVStore) writeAll(name string, rows [][]string) error {
	// Pad every record to at least two fields: the CSV reader drops
	// fully blank lines, which would shift row positions on read-back.
	width := 2
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	for _, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		if err := w.Write(padded); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicWrite(filepath.Join(s.dir, tabFile(name)), []byte(b.String()))
}

func (s *CSVStore) ReadTable(name string) ([][]string, error) {
	return s.readAll(name)
}

func (s *CSVStore) WriteRows(name string, startRow int, rows [][]string) error {
	if startRow < 1 {
		return fmt.Errorf("start row %d out of range", startRow)
	}
	existing, err := s.readAll(name)
	if errors.Is(err, ErrTableNotFound) {
		if err = s.ClearOrCreate(name); err != nil {
			return err
		}
		existing = nil
	} else if err != nil {
		return err
	}
	need := startRow - 1 + len(rows)
	for len(existing) < need {
		existing = append(existing, nil)
	}
	for i, row := range rows {
		existing[startRow-1+i] = row
	}
	return s.writeAll(name, existing)
}

func (s *CSVStore) AppendCapacity(name string, n int) error {
	existing, err := s.readAll(name)
	if errors.Is(err, ErrTableNotFound) {
		if err = s.ClearOrCreate(name); err != nil {
			return err
		}
		existing = nil
	} else if err != nil {
		return err
	}
	if len(existing) >= n {
		return nil
	}
	for len(existing) < n {
		existing = append(existing, nil)
	}
	return s.writeAll(name, existing)
}

func (s *CSVStore) ClearOrCreate(name string) error {
	names, err := s.readIndex()
	if err != nil {
		return err
	}
	found := false
	for _, n := range names {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		names = append(names, name)
		if err := s.writeIndex(names); err != nil {
			return err
		}
	}
	return s.writeAll(name, nil)
}

func (s *CSVStore) FindTable(substring string) (string, error) {
	names, err := s.readIndex()
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

func (s *CSVStore) CreateBackup(name string) (string, error) {
	rows, err := s.readAll(name)
	if err != nil {
		return "", err
	}

	// Drop any previous backup of the same table first.
	names, err := s.readIndex()
	if err != nil {
		return "", err
	}
	kept := names[:0]
	for _, n := range names {
		if strings.HasPrefix(n, "BACKUP_"+name) {
			os.Remove(filepath.Join(s.dir, tabFile(n)))
			continue
		}
		kept = append(kept, n)
	}

	backup := fmt.Sprintf("BACKUP_%s_%s", name, time.Now().Format("20060102_150405"))
	kept = append(kept, backup)
	if err := s.writeIndex(kept); err != nil {
		return "", err
	}
	if err := s.writeAll(backup, rows); err != nil {
		return "", err
	}
	return backup, nil
}

func (s *CSVStore) ReorderTabs(order []string) error {
	names, err := s.readIndex()
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
	return s.writeIndex(reordered)
}

func (s *CSVStore) Tables() ([]string, error) {
	return s.readIndex()
}
