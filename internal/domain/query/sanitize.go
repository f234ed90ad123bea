// Package query prepares free-text input for the portal's Lucene-style parser.
package query

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

// reserved lists every character the backend parser treats as syntax.
// && and || are covered by escaping each & and | on its own; / opens a regex.
const reserved = `+-&|!(){}[]^"~*?:\/`

// Escape prefixes every reserved character with a backslash.
func Escape(s string) string {
	if !strings.ContainsAny(s, reserved) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Sanitize trims raw, enforces the length limit and escapes reserved syntax.
// Empty or oversized input is a Validation error.
func Sanitize(raw string, maxLen int) (string, error) {
	q, err := Check(raw, maxLen)
	if err != nil {
		return "", err
	}
	return Escape(q), nil
}

// Check trims raw and enforces the length limit without escaping.
func Check(raw string, maxLen int) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", domain.Validation("sanitize", domain.ErrEmptyQuery)
	}
	if n := utf8.RuneCountInString(q); maxLen > 0 && n > maxLen {
		return "", domain.Validation("sanitize",
			fmt.Errorf("%w: %d characters, limit %d", domain.ErrQueryTooLong, n, maxLen))
	}
	return q, nil
}

// Normalize trims and collapses runs of whitespace to a single space.
func Normalize(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// QuoteValue escapes v for use inside a double-quoted filter clause.
func QuoteValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
