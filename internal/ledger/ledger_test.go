package ledger

import (
	"testing"
	"time"

	"sessionrec/internal/model"
	"sessionrec/internal/namematch"
	"sessionrec/internal/timewindow"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRowCodecRoundTrip(t *testing.T) {
	t.Parallel()
	row := model.LedgerRow{
		Date:           "10/07/2024",
		ClientName:     "Dale Scaiano",
		Type:           TypeIndividual,
		CurrentSession: "3 of 10",
		Price:          "$85.00",
		PaymentDue:     "",
		MonthlyCalc:    MonthlyCalcCell,
		Status:         "",
	}
	if got := RowFromCells(CellsFromRow(row)); got != row {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRowFromCellsPadsShortRows(t *testing.T) {
	t.Parallel()
	row := RowFromCells([]string{"10/07/2024", "Dale Scaiano"})
	if row.ClientName != "Dale Scaiano" || row.Status != "" {
		t.Fatalf("short row decode: %+v", row)
	}
}

func TestParseTableSkipsHeaderAndBlanks(t *testing.T) {
	t.Parallel()
	raw := [][]string{
		Header,
		{"10/07/2024", "Dale Scaiano", "Individual", "2 of 10", "$85.00", "", "", ""},
		{"", "", "", "", "", "", "", ""},
		{"10/08/2024", "Maria Lopez", "Individual", "1 of 5", "$70.00", "", "", ""},
	}
	rows := ParseTable(raw)
	if len(rows) != 2 {
		t.Fatalf("ParseTable kept %d rows, want 2", len(rows))
	}
	if rows[1].ClientName != "Maria Lopez" {
		t.Fatalf("row order changed: %+v", rows[1])
	}
}

func TestBuildIndexExactPairs(t *testing.T) {
	t.Parallel()
	w := timewindow.Window{Start: date(2024, time.October, 7), End: date(2024, time.October, 13)}
	rows := []model.LedgerRow{
		{Date: "10/07/2024", ClientName: "Dale Scaiano"},
		{Date: "10/01/2024", ClientName: "Dale Scaiano"}, // outside window
		{Date: "not a date", ClientName: "Maria Lopez"},  // skipped with a warning
	}
	idx := BuildIndex(rows, w)

	if idx.Len() != 1 {
		t.Fatalf("index size = %d, want 1", idx.Len())
	}
	if !idx.Has("dale scaiano", date(2024, time.October, 7)) {
		t.Fatal("case-insensitive exact pair should be present")
	}
	if idx.Has("Dale Scaiano", date(2024, time.October, 8)) {
		t.Fatal("different date must not match (exact-pair, not latest-date)")
	}
	if idx.Has("Maria Lopez", date(2024, time.October, 7)) {
		t.Fatal("row with invalid date must not be indexed")
	}
}

func TestCountSessionsOrdering(t *testing.T) {
	t.Parallel()
	rows := []model.LedgerRow{
		{ClientName: "Maria Lopez"},
		{ClientName: "Dale Scaiano"},
		{ClientName: "Maria Lopez"},
		{ClientName: "  "},
		{ClientName: "Alex Chen"},
	}
	counts := CountSessions(rows)
	if len(counts) != 3 {
		t.Fatalf("got %d clients, want 3", len(counts))
	}
	if counts[0].Name != "Maria Lopez" || counts[0].Sessions != 2 {
		t.Fatalf("first entry = %+v, want Maria Lopez x2", counts[0])
	}
	// Tie between the single-session clients breaks alphabetically.
	if counts[1].Name != "Alex Chen" || counts[2].Name != "Dale Scaiano" {
		t.Fatalf("tie order = %q, %q", counts[1].Name, counts[2].Name)
	}
}

func TestLastRowFor(t *testing.T) {
	t.Parallel()
	rows := []model.LedgerRow{
		{Date: "08/26/2024", ClientName: "Dale Scaiano", CurrentSession: "2 of 10"},
		{Date: "09/01/2024", ClientName: "Maria Lopez", CurrentSession: "3 of 5"},
		{Date: "09/15/2024", ClientName: "dale scaiano", CurrentSession: "3 of 10"},
	}

	row, ok := LastRowFor(rows, "Dale Scaiano", namematch.Matcher{})
	if !ok || row.CurrentSession != "3 of 10" {
		t.Fatalf("LastRowFor should find the most recent similar row, got %+v, %v", row, ok)
	}
	if _, ok := LastRowFor(rows, "Sam Fields", namematch.Matcher{}); ok {
		t.Fatal("unknown client should not match")
	}
}

func TestAppendStart(t *testing.T) {
	t.Parallel()
	raw := [][]string{
		Header,
		{"10/07/2024", "Dale Scaiano"},
		{"", ""},
		{"", ""},
	}
	if got := AppendStart(raw); got != 3 {
		t.Fatalf("AppendStart = %d, want 3 (after last non-empty row)", got)
	}
	if got := AppendStart(nil); got != 1 {
		t.Fatalf("AppendStart on empty table = %d, want 1", got)
	}
}
