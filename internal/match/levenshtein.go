package match

import "sync"

// matrix is a reusable row-major DP buffer for Levenshtein.
type matrix struct {
	cells []int
	a, b  []rune
}

var matrixPool = sync.Pool{
	New: func() any { return new(matrix) },
}

// Levenshtein computes the Levenshtein distance (edit distance) between two strings.
// The distance is the minimum number of single-character edits (insertions, deletions,
// or substitutions) required to transform one string into the other.
// Strings are compared rune by rune.
//
// Time complexity: O(len(a) * len(b))
// Space complexity: O(len(a) * len(b)), served from a pooled buffer.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	m := matrixPool.Get().(*matrix)
	defer matrixPool.Put(m)

	m.a = append(m.a[:0], []rune(a)...)
	m.b = append(m.b[:0], []rune(b)...)

	return m.distance()
}

// distance fills the (len(a)+1) x (len(b)+1) matrix and returns its last cell.
func (m *matrix) distance() int {
	la, lb := len(m.a), len(m.b)

	if la == 0 {
		return lb
	}

	if lb == 0 {
		return la
	}

	cols := lb + 1

	size := (la + 1) * cols
	if cap(m.cells) < size {
		m.cells = make([]int, size)
	}

	cells := m.cells[:size]

	// Initialize first column and first row
	for i := 0; i <= la; i++ {
		cells[i*cols] = i
	}

	for j := 0; j <= lb; j++ {
		cells[j] = j
	}

	for i := 1; i <= la; i++ {
		row := i * cols
		prev := row - cols

		for j := 1; j <= lb; j++ {
			cost := 0
			if m.a[i-1] != m.b[j-1] {
				cost = 1
			}

			cells[row+j] = min3(
				cells[prev+j]+1,      // deletion
				cells[row+j-1]+1,     // insertion
				cells[prev+j-1]+cost, // substitution
			)
		}
	}

	return cells[la*cols+lb]
}

// LevenshteinNormalized computes a normalized similarity score between 0 and 1.
// 1.0 means identical strings, 0.0 means completely different.
// The score is: (max(len(a), len(b)) - distance) / max(len(a), len(b)).
// Two empty strings are fully similar; an empty and a non-empty string are not.
func LevenshteinNormalized(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))

	if la == 0 && lb == 0 {
		return 1.0
	}

	if la == 0 || lb == 0 {
		return 0.0
	}

	maxLen := max(la, lb)

	distance := Levenshtein(a, b)

	return float64(maxLen-distance) / float64(maxLen)
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}

		return c
	}

	if b < c {
		return b
	}

	return c
}
