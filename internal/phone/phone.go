// Package phone turns spreadsheet and form input into Bangladesh MSISDNs.
package phone

import "strings"

const (
	CountryCode = "880"
	// MinLength is the shortest normalized number the gateway will accept.
	MinLength = 11
)

var punctuation = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// Normalize maps a raw phone string to its canonical dialable form. Numbers
// that match no known pattern come back as bare digits.
func Normalize(raw string) string {
	p := punctuation.Replace(raw)

	var b strings.Builder
	b.Grow(len(p))
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	p = b.String()

	switch {
	case strings.HasPrefix(p, CountryCode):
		return p
	case strings.HasPrefix(p, "0"):
		return CountryCode + strings.TrimLeft(p, "0")
	case len(p) == 10:
		// spreadsheets drop the leading zero of 01XXXXXXXXX
		return CountryCode + p
	case len(p) == 11 && strings.HasPrefix(p, "1"):
		return CountryCode + p
	default:
		return p
	}
}

// Valid reports whether a normalized number may be handed to the gateway.
func Valid(normalized string) bool {
	return len(normalized) >= MinLength
}
