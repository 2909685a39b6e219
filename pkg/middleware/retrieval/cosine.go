package retrieval

import (
	"fmt"
	"math"
	"sort"
)

// CosineDistance returns 1 - cosine similarity of a and b.
//
// A zero vector has no direction; its distance to anything is 1.
func CosineDistance(a, b EmbeddingVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

// TopK sorts matches by ascending distance and keeps the first k.
//
// The sort is stable: matches supplied in the store's natural order keep
// that order among equal distances.
func TopK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// TopKByKey ranks matches by distance and breaks ties by key order.
//
// Remote stores use it to make tie order independent of server scan order.
func TopKByKey(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Key < matches[j].Key
	})
	return TopK(matches, k)
}
