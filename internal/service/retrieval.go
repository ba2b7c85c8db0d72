package service

import (
	"context"
	"strings"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/search"
	"github.com/RyanNg1403/tieplm/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDenseK   = 150
	defaultLexicalK = 150
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SnapshotProvider hands out the current lexical snapshot.
type SnapshotProvider interface {
	Current() *search.Snapshot
}

// RetrievalConfig sizes the candidate pools of hybrid retrieval.
type RetrievalConfig struct {
	DenseK   int
	LexicalK int
	RRFK     int
}

// RetrieveRequest is one hybrid retrieval query. Chapters and VideoID are
// applied as predicates inside both searches.
type RetrieveRequest struct {
	Query    string
	TopK     int
	Chapters []string
	VideoID  string
}

// Retriever fuses dense and lexical search over the dual store.
type Retriever struct {
	embedder  EmbeddingClient
	vectors   VectorStore
	snapshots SnapshotProvider
	cfg       RetrievalConfig
}

func NewRetriever(embedder EmbeddingClient, vectors VectorStore, snapshots SnapshotProvider, cfg RetrievalConfig) *Retriever {
	if cfg.DenseK <= 0 {
		cfg.DenseK = defaultDenseK
	}
	if cfg.LexicalK <= 0 {
		cfg.LexicalK = defaultLexicalK
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = search.DefaultRRFK
	}
	return &Retriever{
		embedder:  embedder,
		vectors:   vectors,
		snapshots: snapshots,
		cfg:       cfg,
	}
}

// Retrieve returns up to TopK candidates ordered by fused score. An empty
// corpus, or a filter that excludes every chunk, yields an empty list
// without calling the embedder or either search.
func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]domain.Candidate, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		VideoID:   req.VideoID,
		Operation: "retrieve",
	})
	defer span.End()

	snap := r.snapshots.Current()
	if !snap.HasAnyChapter(req.Chapters) {
		return []domain.Candidate{}, nil
	}
	if req.VideoID != "" && !snap.HasVideo(req.VideoID) {
		return []domain.Candidate{}, nil
	}

	vector, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	var (
		dense   []VectorHit
		lexical []search.Hit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = r.vectors.Search(gctx, vector, r.cfg.DenseK, VectorFilter{
			Chapters: req.Chapters,
			VideoID:  req.VideoID,
		})
		return err
	})
	g.Go(func() error {
		var err error
		lexical, err = snap.Search(gctx, query, search.Filter{
			Chapters: req.Chapters,
			VideoID:  req.VideoID,
		}, r.cfg.LexicalK)
		return err
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	return fuseCandidates(snap, dense, lexical, r.cfg.RRFK, req.TopK), nil
}

// fuseCandidates merges both hit lists and hydrates them from the snapshot.
// Hits without a relational row in the snapshot are dropped.
func fuseCandidates(snap *search.Snapshot, dense []VectorHit, lexical []search.Hit, k, topK int) []domain.Candidate {
	denseIDs := make([]string, len(dense))
	denseScores := make(map[string]float64, len(dense))
	for i, h := range dense {
		denseIDs[i] = h.ChunkID
		if _, ok := denseScores[h.ChunkID]; !ok {
			denseScores[h.ChunkID] = h.Score
		}
	}
	lexicalIDs := make([]string, len(lexical))
	lexicalScores := make(map[string]float64, len(lexical))
	for i, h := range lexical {
		lexicalIDs[i] = h.ChunkID
		if _, ok := lexicalScores[h.ChunkID]; !ok {
			lexicalScores[h.ChunkID] = h.Score
		}
	}

	fused := search.FuseRRF(k, denseIDs, lexicalIDs)
	out := make([]domain.Candidate, 0, len(fused))
	for _, f := range fused {
		if topK > 0 && len(out) == topK {
			break
		}
		vc, ok := snap.Chunk(f.ChunkID)
		if !ok {
			continue
		}
		out = append(out, domain.Candidate{
			Chunk:        vc.Chunk,
			Video:        vc.Video,
			DenseRank:    f.Ranks[0],
			DenseScore:   denseScores[f.ChunkID],
			LexicalRank:  f.Ranks[1],
			LexicalScore: lexicalScores[f.ChunkID],
			FusedScore:   f.Score,
			FinalRank:    len(out) + 1,
		})
	}
	return out
}

// VideoCandidates returns every chunk of one video in time order, for tasks
// that cover a whole lecture instead of answering a query.
func (r *Retriever) VideoCandidates(videoID string) []domain.Candidate {
	chunks := r.snapshots.Current().VideoChunks(videoID)
	out := make([]domain.Candidate, 0, len(chunks))
	for i, vc := range chunks {
		out = append(out, domain.Candidate{
			Chunk:     vc.Chunk,
			Video:     vc.Video,
			FinalRank: i + 1,
		})
	}
	return out
}
