package imagestore

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string (e.g., "Łódź" -> "Łodz").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// safeSegment turns an identifier into a single path segment made of
// ASCII letters, digits, dash, underscore and dot. Diacritics are folded
// first so "Żaneta" becomes "Zaneta" rather than "_aneta".
func safeSegment(s string) string {
	s = removeDiacritics(strings.TrimSpace(s))
	s = strings.NewReplacer("ł", "l", "Ł", "L").Replace(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "_"
	}
	return out
}
