// Package match provides name normalization, Levenshtein distance calculation,
// tiered token scoring, and candidate ranking for resident name matching.
//
// Key functions:
//   - Normalize: splits a raw OCR string into comparable tokens
//   - Levenshtein: computes edit distance between strings
//   - ScoreTokenPair: scores two tokens (exact, containment, edit distance)
//   - ScoreNamePair: scores two full names in [0, 1]
//   - Rank: ranks residents against a query name
package match
