package dateparse

import (
	"errors"
	"testing"
	"time"
)

func TestParseFormats(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, time.October, 7, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   string
	}{
		{"iso date", "2024-10-07"},
		{"iso datetime utc", "2024-10-07T00:00:00Z"},
		{"iso datetime offset", "2024-10-07T09:30:00-05:00"},
		{"slash padded", "10/07/2024"},
		{"slash unpadded", "10/7/2024"},
		{"surrounding whitespace", "  2024-10-07  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.in, err)
			}
			if !got.Equal(want) {
				t.Fatalf("Parse(%q) = %v, want %v", tc.in, got, want)
			}
		})
	}
}

func TestParseBothPathsEqual(t *testing.T) {
	t.Parallel()
	iso, err := Parse("2024-10-07T00:00:00Z")
	if err != nil {
		t.Fatalf("iso: %v", err)
	}
	slash, err := Parse("10/07/2024")
	if err != nil {
		t.Fatalf("slash: %v", err)
	}
	if !iso.Equal(slash) {
		t.Fatalf("iso %v != slash %v", iso, slash)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "yesterday", "2024/10/07", "13/40/2024"} {
		_, err := Parse(in)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", in)
		}
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("Parse(%q): expected *FormatError, got %T", in, err)
		}
	}
}

func TestParseFormatIdempotent(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"2024-10-07T12:00:00Z", "1/2/2024"} {
		first, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		second, err := Parse(Format(first))
		if err != nil {
			t.Fatalf("reparse of %q: %v", Format(first), err)
		}
		if !second.Equal(first) {
			t.Fatalf("round trip of %q drifted: %v -> %v", in, first, second)
		}
	}
}

func TestReportRoundTrip(t *testing.T) {
	t.Parallel()
	d := time.Date(2024, time.October, 7, 0, 0, 0, 0, time.UTC)
	s := FormatReport(d)
	if s != "Mon 10/07" {
		t.Fatalf("FormatReport = %q", s)
	}
	back, err := ParseReport(s, 2024)
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if !back.Equal(d) {
		t.Fatalf("ParseReport round trip = %v, want %v", back, d)
	}
}

func TestDateOf(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, time.October, 7, 18, 45, 12, 0, time.UTC)
	if got := DateOf(ts); got != time.Date(2024, time.October, 7, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("DateOf = %v", got)
	}
}
