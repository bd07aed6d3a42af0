// Package quiz implements question generation and the quiz session
// state machine.
package quiz

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minSubstringRunes guards the fuzzy substring match against trivial
// false positives on short tokens. Exact normalized equality is always
// accepted, so short official variants still work.
const minSubstringRunes = 4

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeAnswer lowercases, trims and strips accents so "Qué" and
// "que" compare equal.
func normalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return folded
}

// MatchAnswer reports whether the user's answer matches any accepted
// variant. Matching is deliberately lenient (a fuzzy-match policy, not
// exact matching): case- and accent-insensitive, and a substring match
// in either direction counts as long as the shorter side has at least
// minSubstringRunes runes.
func MatchAnswer(userAnswer string, variants []string) bool {
	user := normalizeAnswer(userAnswer)
	if user == "" {
		return false
	}

	for _, variant := range variants {
		v := normalizeAnswer(variant)
		if v == "" {
			continue
		}
		if user == v {
			return true
		}
		if utf8.RuneCountInString(user) >= minSubstringRunes && strings.Contains(v, user) {
			return true
		}
		if utf8.RuneCountInString(v) >= minSubstringRunes && strings.Contains(user, v) {
			return true
		}
	}
	return false
}
