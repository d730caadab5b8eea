// Package texto normalizes free Portuguese text for matching and for object
// key slugs.
package texto

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips accents, reads "&" as "e" and collapses
// every run of non-alphanumeric characters into a single space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, strings.ToLower(strings.ReplaceAll(s, "&", " e ")))
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Slug is Normalize joined with dashes; "" stays "".
func Slug(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "-")
}

// ContainsWords reports whether the words of sub appear, in order and
// adjacent, among the words of s. Both must already be normalized.
func ContainsWords(s, sub string) bool {
	if sub == "" {
		return false
	}
	return strings.Contains(" "+s+" ", " "+sub+" ")
}
