// Package sessioncount handles the ledger's "current of total"
// package-progress strings and the payment-due math derived from them.
//
// Corrupted progress cells must never abort a merge batch, so every
// parse failure collapses to the safe default "1 of 1" instead of
// surfacing an error to the caller.
package sessioncount

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	applog "sessionrec/internal/log"
)

// Default is the progress written for clients with no usable history.
const Default = "1 of 1"

const separator = " of "

// Parse splits a "C of T" progress string into its two counters.
// Both components must be positive integers.
func Parse(progress string) (current, total int, ok bool) {
	s := strings.TrimSpace(progress)
	i := strings.Index(s, separator)
	if i < 0 {
		return 0, 0, false
	}
	current, err := strconv.Atoi(strings.TrimSpace(s[:i]))
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.Atoi(strings.TrimSpace(s[i+len(separator):]))
	if err != nil {
		return 0, 0, false
	}
	if current < 1 || total < 1 {
		return 0, 0, false
	}
	return current, total, true
}

// Format renders the canonical "C of T" form.
func Format(current, total int) string {
	return strconv.Itoa(current) + separator + strconv.Itoa(total)
}

// Increment moves a client's package progress forward by one session:
// "3 of 5" becomes "4 of 5". Unparseable input yields Default.
func Increment(progress string) string {
	current, total, ok := Parse(progress)
	if !ok {
		applog.Warn("invalid session progress, using default", "progress", progress, "default", Default)
		return Default
	}
	return Format(current+1, total)
}

// Decrement moves progress back by one session, flooring current at 1:
// "1 of 5" stays "1 of 5". Unparseable input yields Default.
func Decrement(progress string) string {
	current, total, ok := Parse(progress)
	if !ok {
		applog.Warn("invalid session progress, using default", "progress", progress, "default", Default)
		return Default
	}
	if current > 1 {
		current--
	}
	return Format(current, total)
}

// Complete reports whether progress has reached (or passed) the end of
// its package.
func Complete(progress string) bool {
	current, total, ok := Parse(progress)
	return ok && current >= total
}

// ParsePrice reads a ledger price cell ("$85", "$85.00"). Placeholders
// ("???", "DUE???", "MONTHLY CALC??") and empty cells report !ok.
func ParsePrice(cell string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cell), "$"))
	if s == "" || strings.ContainsAny(s, "?Xx") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// FormatPrice renders a dollar amount with two decimal places.
func FormatPrice(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// PaymentDue derives the payment annotation for a progress string: once
// a package is complete and the per-session price is known, the client
// owes price x total. In every other case the annotation is empty.
func PaymentDue(progress, priceCell string) string {
	if !Complete(progress) {
		return ""
	}
	price, ok := ParsePrice(priceCell)
	if !ok {
		return ""
	}
	_, total, _ := Parse(progress)
	due := price.Mul(decimal.NewFromInt(int64(total)))
	return "DUE " + FormatPrice(due)
}
