// Package namematch resolves human-typed client names. Calendar event
// text carries inconsistent casing, spelling, and typos; the ledger's
// own history is the source of truth for correct spelling.
package namematch

import (
	"strings"

	"sessionrec/internal/model"
)

// DefaultThreshold is the similarity ratio at or above which two names
// are considered the same client.
const DefaultThreshold = 0.85

// Matcher compares names at a configured similarity threshold. It is a
// plain value passed to collaborators at construction; the zero value
// uses DefaultThreshold, as do thresholds outside (0, 1].
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a Matcher for the given threshold.
func NewMatcher(threshold float64) Matcher {
	return Matcher{Threshold: threshold}
}

func (m Matcher) threshold() float64 {
	if m.Threshold > 0 && m.Threshold <= 1 {
		return m.Threshold
	}
	return DefaultThreshold
}

// Similar reports whether a and b name the same client at the
// matcher's threshold. Comparison is case-insensitive and
// whitespace-trimmed; an empty side never matches.
func (m Matcher) Similar(a, b string) bool {
	return SimilarAt(a, b, m.threshold())
}

// Similar is Matcher.Similar at the default threshold.
func Similar(a, b string) bool {
	return Matcher{}.Similar(a, b)
}

// SimilarAt is Similar with an explicit threshold.
func SimilarAt(a, b string, threshold float64) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return Ratio(a, b) >= threshold
}

// Ratio is a normalized edit-distance similarity in [0,1]: 1 for equal
// strings, 0 for nothing in common.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(ra, rb))/float64(longest)
}

// editDistance is the Levenshtein distance over runes, single-row DP.
func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur := prev[0]
		prev[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			next := min3(prev[j]+1, prev[j-1]+1, cur+cost)
			cur = prev[j]
			prev[j] = next
		}
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// ResolveCanonical scans historical ledger rows for names similar to
// query, tallies occurrences per distinct case-insensitive spelling and
// returns the most frequent one. Ties go to the spelling seen first.
// With no similar history the query comes back unchanged.
func (m Matcher) ResolveCanonical(query string, history []model.LedgerRow) string {
	type spelling struct {
		display string // capitalization of the first occurrence
		count   int
		order   int
	}

	tally := make(map[string]*spelling)
	seen := 0
	for _, row := range history {
		name := strings.TrimSpace(row.ClientName)
		if name == "" || !m.Similar(query, name) {
			continue
		}
		key := strings.ToLower(name)
		if sp, ok := tally[key]; ok {
			sp.count++
		} else {
			tally[key] = &spelling{display: name, count: 1, order: seen}
			seen++
		}
	}
	if len(tally) == 0 {
		return query
	}

	var best *spelling
	for _, sp := range tally {
		if best == nil || sp.count > best.count || (sp.count == best.count && sp.order < best.order) {
			best = sp
		}
	}
	return best.display
}

// ResolveCanonical is Matcher.ResolveCanonical at the default
// threshold.
func ResolveCanonical(query string, history []model.LedgerRow) string {
	return Matcher{}.ResolveCanonical(query, history)
}

// ExtractName isolates a "First Last" candidate from an event title by
// taking its first two whitespace-separated tokens. This is the crude
// fallback for when no roster is available; with fewer than two tokens
// it reports no match rather than guessing.
func ExtractName(title string) (string, bool) {
	fields := strings.Fields(title)
	if len(fields) < 2 {
		return "", false
	}
	return fields[0] + " " + fields[1], true
}

// MatchRoster matches an event's combined title+description text
// against the roster: a client matches if any whitespace token of their
// name appears as a case-insensitive substring of the text. The roster
// is walked in insertion order and the first match wins, so an event
// attaches to at most one client.
func MatchRoster(summary, description string, roster []string) (string, bool) {
	text := strings.ToLower(summary) + " " + strings.ToLower(description)
	for _, client := range roster {
		for _, part := range strings.Fields(strings.ToLower(client)) {
			if strings.Contains(text, part) {
				return client, true
			}
		}
	}
	return "", false
}
