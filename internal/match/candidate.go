package match

import (
	"math"
	"sort"

	"resident-matcher/internal/common"
	"resident-matcher/internal/resident"
)

// Ranking defaults.
const (
	// DefaultThreshold is the minimum similarity (percent) for a candidate to be surfaced.
	DefaultThreshold = 60
	// DefaultMaxResults caps the merged result list.
	DefaultMaxResults = 5
)

// Options tune ranking.
type Options struct {
	Threshold  int    // minimum similarity percent, inclusive
	MaxResults int    // cap applied by Merge
	Policy     Policy // token pairing policy
}

// DefaultOptions returns the standard ranking options.
func DefaultOptions() Options {
	return Options{
		Threshold:  DefaultThreshold,
		MaxResults: DefaultMaxResults,
		Policy:     PolicyFirstMatch,
	}
}

// Candidate represents a resident proposed as a match for a query string.
type Candidate struct {
	ID         resident.ID `json:"id"`
	Name       string      `json:"name"`
	Apartment  string      `json:"apartment"`
	Block      string      `json:"block"`
	Similarity int         `json:"similarity"` // percent, 0-100

	// Query is the normalized query that produced this candidate.
	Query string `json:"-"`
}

// CandidateList is a list of candidates with ranking functionality.
type CandidateList []Candidate

// Similarity converts a [0, 1] name score to a rounded percentage.
func Similarity(score float64) int {
	return int(math.Round(score * 100))
}

// Rank scores every resident against the query name and returns those at or
// above the threshold, sorted by similarity (descending).
// Equal similarities keep the residents' input order.
func Rank(query string, residents []resident.Record, opts Options) CandidateList {
	queryTokens := Normalize(query)
	normalizedQuery := queryTokens.String()

	var candidates CandidateList

	for i := range residents {
		r := residents[i].WithDefaults()

		similarity := Similarity(ScoreTokens(queryTokens, Normalize(r.Name), opts.Policy))
		if similarity < opts.Threshold {
			continue
		}

		candidates = append(candidates, Candidate{
			ID:         r.ID,
			Name:       r.Name,
			Apartment:  r.Apartment,
			Block:      r.Block,
			Similarity: similarity,
			Query:      normalizedQuery,
		})
	}

	sort.Stable(candidates)

	return candidates
}

// Merge concatenates per-query lists in order, keeps the first occurrence of
// each resident, sorts by similarity (descending) and truncates to maxResults.
// A non-positive maxResults disables truncation.
func Merge(lists []CandidateList, maxResults int) CandidateList {
	var all CandidateList
	for _, l := range lists {
		all = append(all, l...)
	}

	merged := all.Dedup()
	sort.Stable(merged)

	if maxResults <= 0 {
		return merged
	}

	return merged.Top(maxResults)
}

// Len implements sort.Interface.
func (c CandidateList) Len() int { return len(c) }

// Swap implements sort.Interface.
func (c CandidateList) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

// Less implements sort.Interface.
// Higher similarity comes first; use with sort.Stable to keep input order on ties.
func (c CandidateList) Less(i, j int) bool {
	return c[i].Similarity > c[j].Similarity
}

// Dedup returns a new list keeping only the first candidate for each resident ID.
func (c CandidateList) Dedup() CandidateList {
	return common.UniqueBy(c, func(cand Candidate) resident.ID { return cand.ID })
}

// Top returns the top n candidates.
func (c CandidateList) Top(n int) CandidateList {
	if n >= len(c) {
		return c
	}
	return c[:n]
}

// Best returns the best candidate, or nil if no candidates.
func (c CandidateList) Best() *Candidate {
	if common.IsEmpty(c) {
		return nil
	}
	return &c[0]
}

// IsAmbiguous returns true if the top two candidates are within gap points of each other.
func (c CandidateList) IsAmbiguous(gap int) bool {
	if !common.IsMultiple(c) {
		return false
	}
	return c[0].Similarity-c[1].Similarity < gap
}
