// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"container/heap"
	"math"

	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. Zero vectors and length mismatches score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// TopK keeps the k best-scoring results pushed into it. It is used by the
// brute-force backends.
type TopK struct {
	k int
	h resultHeap
}

func NewTopK(k int) *TopK {
	return &TopK{k: k, h: make(resultHeap, 0, k)}
}

// Push offers r. It is kept only while it is among the k best.
func (t *TopK) Push(r schema.VectorSearchResult) {
	if t.k <= 0 {
		return
	}
	if t.h.Len() < t.k {
		heap.Push(&t.h, r)
		return
	}
	if r.Score > t.h[0].Score {
		t.h[0] = r
		heap.Fix(&t.h, 0)
	}
}

// Results returns the kept results by descending score.
func (t *TopK) Results() []schema.VectorSearchResult {
	out := make([]schema.VectorSearchResult, t.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(schema.VectorSearchResult)
	}
	return out
}

// resultHeap is a min-heap on score.
type resultHeap []schema.VectorSearchResult

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(schema.VectorSearchResult)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
