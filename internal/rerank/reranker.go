// Package rerank scores retrieval candidates against a query with a
// cross-encoder.
package rerank

import (
	"context"
	"sort"
)

// Result scores one input document. Index points into the documents passed
// to Rerank.
type Result struct {
	Index int
	Score float64
}

// Reranker reorders documents by relevance to a query. Implementations only
// return indexes of the input documents, each at most once.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error)
}

// NoOpReranker keeps the input order.
type NoOpReranker struct{}

var _ Reranker = NoOpReranker{}

func (NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]Result, error) {
	n := len(documents)
	if topK > 0 && topK < n {
		n = topK
	}
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{Index: i, Score: 1.0 / float64(1+i)}
	}
	return out, nil
}

// sanitize drops results that point outside the input or repeat an index,
// then orders by score descending with ties kept in input order.
func sanitize(results []Result, n int) []Result {
	seen := make(map[int]struct{}, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			continue
		}
		if _, dup := seen[r.Index]; dup {
			continue
		}
		seen[r.Index] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Index < out[j].Index
	})
	return out
}
