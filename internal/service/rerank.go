package service

import (
	"context"
	"sort"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/rerank"
)

const defaultFinalContextChunks = 10

// CandidateReranker applies a cross-encoder to fused candidates and keeps
// the best M for the prompt.
type CandidateReranker struct {
	reranker rerank.Reranker
	finalK   int
	enabled  bool
}

func NewCandidateReranker(reranker rerank.Reranker, finalK int, enabled bool) *CandidateReranker {
	if finalK <= 0 {
		finalK = defaultFinalContextChunks
	}
	if reranker == nil {
		reranker = rerank.NoOpReranker{}
		enabled = false
	}
	return &CandidateReranker{reranker: reranker, finalK: finalK, enabled: enabled}
}

// Rerank orders candidates by cross-encoder score, ties by chunk id, and
// truncates to M. When reranking is disabled or there are at most M
// candidates the fused order is kept. The result is always a subset of the
// input.
func (r *CandidateReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if !r.enabled || len(candidates) <= r.finalK {
		out := append([]domain.Candidate(nil), candidates[:min(len(candidates), r.finalK)]...)
		for i := range out {
			out[i].FinalRank = i + 1
		}
		return out, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = candidateText(c)
	}

	results, err := r.reranker.Rerank(ctx, query, docs, 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(results))
	out := make([]domain.Candidate, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		if _, dup := seen[res.Index]; dup {
			continue
		}
		seen[res.Index] = struct{}{}
		c := candidates[res.Index]
		score := res.Score
		c.RerankScore = &score
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := *out[i].RerankScore, *out[j].RerankScore
		if si != sj {
			return si > sj
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if len(out) > r.finalK {
		out = out[:r.finalK]
	}
	for i := range out {
		out[i].FinalRank = i + 1
	}
	return out, nil
}

func candidateText(c domain.Candidate) string {
	if c.Chunk.EnrichedText != "" {
		return c.Chunk.EnrichedText
	}
	return c.Chunk.RawText
}
