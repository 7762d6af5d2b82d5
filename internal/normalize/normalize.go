// Package normalize canonicalizes listing text so that names, categories and metros
// from different sources compare equal despite case and punctuation differences.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KeySeparator joins the normalized parts of a Match Key. Text never emits it.
const KeySeparator = "|"

// Text returns the canonical form of s: lowercased, "&" spelled "and", everything but
// word runes and whitespace stripped, whitespace collapsed and trimmed.
// Text is total and idempotent.
func Text(s string) string {
	if s == "" {
		return ""
	}

	// Casers are stateful, so one is built per call.
	lowered := cases.Lower(language.Und).String(s)
	lowered = strings.ReplaceAll(lowered, "&", "and")

	stripped := strings.Map(func(r rune) rune {
		switch {
		case isWordRune(r):
			return r
		case isSpace(r):
			return ' '
		default:
			return -1
		}
	}, lowered)

	return strings.Join(strings.Fields(stripped), " ")
}

// MatchKey builds the join identity for a listing.
func MatchKey(name, category, metro string) string {
	return Text(name) + KeySeparator + Text(category) + KeySeparator + Text(metro)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isSpace also counts the ASCII separators U+001C..U+001F, which unicode.IsSpace does not.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
