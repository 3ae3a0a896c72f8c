package eval

import (
	"fmt"
	"math"

	"github.com/kbukum/recpipe/errors"
)

// Set is a set of relevant item ids.
type Set map[string]struct{}

// NewSet builds a Set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func checkK(k int) error {
	if k < 0 {
		return errors.InvalidInput("k", fmt.Sprintf("cutoff must be >= 0, got %d", k))
	}
	return nil
}

// Truncate returns the first k ids. k == 0 means no cutoff.
func Truncate(ids []string, k int) ([]string, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	if k == 0 || len(ids) <= k {
		return ids, nil
	}
	return ids[:k], nil
}

func hits(ids []string, relevant Set) int {
	n := 0
	for _, id := range ids {
		if relevant.Has(id) {
			n++
		}
	}
	return n
}

// Precision is the fraction of the (truncated) ranking that is relevant.
// It is NaN for an empty ranking.
func Precision(ranked []string, relevant Set, k int) (float64, error) {
	top, err := Truncate(ranked, k)
	if err != nil {
		return 0, err
	}
	if len(top) == 0 {
		return math.NaN(), nil
	}
	return float64(hits(top, relevant)) / float64(len(top)), nil
}

// Recall is the fraction of relevant items found in the (truncated)
// ranking. With a cutoff the denominator is capped at k, so a perfect
// top-k list scores 1. It is NaN when nothing is relevant.
func Recall(ranked []string, relevant Set, k int) (float64, error) {
	top, err := Truncate(ranked, k)
	if err != nil {
		return 0, err
	}
	want := len(relevant)
	if k > 0 && want > k {
		want = k
	}
	if want == 0 {
		return math.NaN(), nil
	}
	return float64(hits(top, relevant)) / float64(want), nil
}

// NDCG is binary-gain normalized discounted cumulative gain, discounting
// rank r (1-based) by log2(r+1). It is NaN when nothing is relevant.
func NDCG(ranked []string, relevant Set, k int) (float64, error) {
	top, err := Truncate(ranked, k)
	if err != nil {
		return 0, err
	}
	ideal := len(relevant)
	if k > 0 && ideal > k {
		ideal = k
	}
	if ideal == 0 {
		return math.NaN(), nil
	}

	var dcg, idcg float64
	for i, id := range top {
		if relevant.Has(id) {
			dcg += discount(i)
		}
	}
	for i := 0; i < ideal; i++ {
		idcg += discount(i)
	}
	return dcg / idcg, nil
}

func discount(i int) float64 {
	return 1 / math.Log2(float64(i)+2)
}

// RecipRank is 1/r for the rank r of the first relevant item, or 0 when
// none is found.
func RecipRank(ranked []string, relevant Set, k int) (float64, error) {
	top, err := Truncate(ranked, k)
	if err != nil {
		return 0, err
	}
	for i, id := range top {
		if relevant.Has(id) {
			return 1 / float64(i+1), nil
		}
	}
	return 0, nil
}
