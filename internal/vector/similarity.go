package vector

import (
	"sort"

	"github.com/hyperjump/prodsearch/pkg/utils"
)

// normalized returns a unit-length copy of v. Zero vectors are copied unchanged
// and score 0 against everything.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	utils.NormalizeL2(out)
	return out
}

// similarity is the inner product of two normalized vectors, clamped to [-1, 1].
func similarity(a, b []float32) float64 {
	return utils.ClampUnit(utils.Dot(a, b))
}

// better orders hits by descending similarity, then ascending id.
func better(a, b Hit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.ID < b.ID
}

// SortHits sorts hits into result order.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return better(hits[i], hits[j]) })
}
