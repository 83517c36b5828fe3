// Package phone turns customer phone numbers into the canonical key used
// to look up wallets.
package phone

import (
	"regexp"
	"strings"
)

var canonical = regexp.MustCompile(`^0[0-9]{9,10}$`)

// Normalize strips separators (space, '-', '.', '(', ')' and one leading
// '+') and rewrites the +84/84 country prefix to a leading zero. Any other
// character leaves the input as is, which Valid then rejects.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		case r == '+' && i == 0:
		default:
			return trimmed
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "84") && len(digits) >= 11 {
		return "0" + digits[2:]
	}
	return digits
}

// Valid reports whether p is already in canonical form.
func Valid(p string) bool {
	return canonical.MatchString(p)
}

// Canonical normalizes raw and reports whether the result is valid.
func Canonical(raw string) (string, bool) {
	p := Normalize(raw)
	return p, Valid(p)
}
