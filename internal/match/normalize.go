package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTokenLen is the shortest token (in runes) that takes part in scoring.
// Shorter fragments are mostly OCR noise ("da", "j", "p.").
const MinTokenLen = 3

// Tokens is a normalized, whitespace-split name.
type Tokens []string

// Normalize canonicalizes a raw name for comparison.
// The normalization pipeline:
// 1. Case-fold to lower.
// 2. Decompose (NFD) and strip combining marks: "João" -> "joao".
// 3. Replace anything that is not a letter, digit, mark or space with a space.
//    Spacing marks (Devanagari vowel signs) stay inside their word.
// 4. Collapse whitespace and split into tokens.
//
// Normalize never fails; an empty or all-noise input yields no tokens.
func Normalize(raw string) Tokens {
	if raw == "" {
		return nil
	}

	s := stripDiacritics(strings.ToLower(raw))
	s = strings.Map(replaceNoise, s)

	return strings.Fields(s)
}

// NormalizeString returns the normalized tokens joined by single spaces.
func NormalizeString(raw string) string {
	return Normalize(raw).String()
}

// String joins the tokens with single spaces.
func (t Tokens) String() string {
	return strings.Join(t, " ")
}

// Significant reports whether the token is long enough to be scored.
func Significant(token string) bool {
	return utf8.RuneCountInString(token) >= MinTokenLen
}

// stripDiacritics removes nonspacing marks after NFD decomposition.
// A fresh transformer is built per call: transform.Chain keeps internal
// state and is not safe for concurrent use.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}

	return result
}

// replaceNoise maps punctuation and symbols to a space.
func replaceNoise(r rune) rune {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || unicode.IsSpace(r) {
		return r
	}

	return ' '
}
