package match

import "strings"

// Token scores. Tiers are evaluated in this order and the first hit wins.
const (
	ScoreExact       = 1.0
	ScoreContains    = 0.7
	ScoreEditClose   = 0.5
	ScoreNoMatch     = 0.0
	EditCloseMinimum = 0.8 // LevenshteinNormalized must exceed this for ScoreEditClose
)

// Policy selects how a query token is paired with candidate tokens.
type Policy int

const (
	// PolicyFirstMatch takes the first candidate token with a nonzero score.
	PolicyFirstMatch Policy = iota
	// PolicyBestMatch takes the highest score over all candidate tokens.
	PolicyBestMatch
)

// ScoreTokenPair scores two normalized tokens:
//   - 1.0 when they are equal
//   - 0.7 when one contains the other
//   - 0.5 when their normalized edit similarity exceeds 0.8
//   - 0.0 otherwise
func ScoreTokenPair(a, b string) float64 {
	if a == b {
		return ScoreExact
	}

	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return ScoreContains
	}

	if LevenshteinNormalized(a, b) > EditCloseMinimum {
		return ScoreEditClose
	}

	return ScoreNoMatch
}

// ScoreNamePair computes the similarity of two full names in [0, 1]
// using PolicyFirstMatch.
func ScoreNamePair(query, candidate string) float64 {
	return ScoreTokens(Normalize(query), Normalize(candidate), PolicyFirstMatch)
}

// ScoreTokens aggregates token scores of two normalized names.
// Short tokens are skipped on both sides, but the denominator is the larger
// raw token count, so names made mostly of short fragments score low.
func ScoreTokens(query, candidate Tokens, policy Policy) float64 {
	total := max(len(query), len(candidate))
	if total == 0 {
		return 0
	}

	var sum float64

	for _, qt := range query {
		if !Significant(qt) {
			continue
		}

		sum += scoreAgainst(qt, candidate, policy)
	}

	return sum / float64(total)
}

// scoreAgainst pairs one query token with the candidate tokens.
func scoreAgainst(token string, candidate Tokens, policy Policy) float64 {
	var best float64

	for _, ct := range candidate {
		if !Significant(ct) {
			continue
		}

		score := ScoreTokenPair(token, ct)
		if score == ScoreNoMatch {
			continue
		}

		if policy == PolicyFirstMatch {
			return score
		}

		if score > best {
			best = score
		}

		if best == ScoreExact {
			break
		}
	}

	return best
}

// String returns the policy name used in configuration files.
func (p Policy) String() string {
	switch p {
	case PolicyFirstMatch:
		return "first"
	case PolicyBestMatch:
		return "best"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a policy name; the empty string selects PolicyFirstMatch.
func ParsePolicy(s string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return PolicyFirstMatch, true
	case "best":
		return PolicyBestMatch, true
	default:
		return PolicyFirstMatch, false
	}
}
