// Package fuzzy picks the candidate title closest to a query title.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum score a match must strictly exceed.
const DefaultThreshold = 0.7

// Similarity scores two normalized strings in [0,1].
type Similarity func(a, b string) float64

type Resolver struct {
	threshold  float64
	similarity Similarity
}

// NewResolver returns a resolver using Levenshtein similarity. A threshold
// outside (0,1) falls back to DefaultThreshold.
func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Resolver{threshold: threshold, similarity: LevenshteinSimilarity}
}

// WithSimilarity swaps the scoring function.
func (r *Resolver) WithSimilarity(s Similarity) *Resolver {
	return &Resolver{threshold: r.threshold, similarity: s}
}

func (r *Resolver) Threshold() float64 { return r.threshold }

// BestMatch returns the index and score of the best candidate. ok is false
// when there are no candidates or the best score does not exceed the
// threshold. Ties keep the earliest candidate.
func (r *Resolver) BestMatch(query string, candidates []string) (index int, score float64, ok bool) {
	if len(candidates) == 0 {
		return -1, 0, false
	}
	q := Normalize(query)
	index = -1
	score = -1
	for i, c := range candidates {
		s := r.similarity(q, Normalize(c))
		if s > score {
			index, score = i, s
		}
	}
	return index, score, score > r.threshold
}

// Normalize lower-cases and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// LevenshteinSimilarity is 1 - distance/maxRuneLength; two empty strings
// are identical.
func LevenshteinSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
