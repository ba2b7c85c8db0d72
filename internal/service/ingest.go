package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEmbedBatchSize   = 100
	defaultIngestWorkers    = 4
	defaultStoreMaxAttempts = 3
)

// BatchEmbedder embeds many texts in one call, preserving order.
type BatchEmbedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkEnricher produces the enriched text of one chunk.
type ChunkEnricher interface {
	Enrich(ctx context.Context, raw domain.RawChunk, prev, next *domain.RawChunk, video domain.Video) EnrichResult
}

// SnapshotRefresher rebuilds the lexical snapshot after writes.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) error
}

// IngestConfig tunes the write path. StoreBackoff is the delay before the
// second store attempt; later attempts wait proportionally longer.
type IngestConfig struct {
	EmbedBatchSize   int
	Workers          int
	StoreMaxAttempts int
	StoreBackoff     time.Duration
}

// VideoInput is one video and its transcript.
type VideoInput struct {
	Video      domain.Video
	Transcript domain.Transcript
}

// IngestOptions controls a run. Reset deletes the video's existing chunks
// and vectors before writing.
type IngestOptions struct {
	Reset bool
}

// VideoReport summarizes the ingestion of one video.
type VideoReport struct {
	VideoID  string
	Chunks   int
	Stored   int
	Embedded int
	Degraded int
	Failed   []string
	Err      error
}

// IngestReport summarizes a batch run.
type IngestReport struct {
	Videos       []VideoReport
	FailedVideos int
	FailedChunks int
}

// IngestService chunks, enriches, embeds and stores transcripts.
type IngestService struct {
	videos    VideoRepositoryInterface
	chunks    ChunkRepositoryInterface
	vectors   VectorStore
	chunker   *Chunker
	enricher  ChunkEnricher
	embedder  BatchEmbedder
	refresher SnapshotRefresher
	cfg       IngestConfig
}

func NewIngestService(
	videos VideoRepositoryInterface,
	chunks ChunkRepositoryInterface,
	vectors VectorStore,
	chunker *Chunker,
	enricher ChunkEnricher,
	embedder BatchEmbedder,
	refresher SnapshotRefresher,
	cfg IngestConfig,
) *IngestService {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultEmbedBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultIngestWorkers
	}
	if cfg.StoreMaxAttempts <= 0 {
		cfg.StoreMaxAttempts = defaultStoreMaxAttempts
	}
	if cfg.StoreBackoff < 0 {
		cfg.StoreBackoff = 0
	}
	return &IngestService{
		videos:    videos,
		chunks:    chunks,
		vectors:   vectors,
		chunker:   chunker,
		enricher:  enricher,
		embedder:  embedder,
		refresher: refresher,
		cfg:       cfg,
	}
}

// IngestAll ingests videos in parallel, at most cfg.Workers at a time. Inputs
// sharing a video id are processed in order by the same worker. A failing
// video never stops the others. The lexical snapshot is refreshed at the end.
func (s *IngestService) IngestAll(ctx context.Context, inputs []VideoInput, opts IngestOptions) (*IngestReport, error) {
	groups := make(map[string][]int)
	order := make([]string, 0, len(inputs))
	for i, in := range inputs {
		id := in.Video.ID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	reports := make([]VideoReport, len(inputs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, id := range order {
		indexes := groups[id]
		g.Go(func() error {
			for _, i := range indexes {
				rep, err := s.IngestVideo(ctx, inputs[i], opts)
				if rep == nil {
					rep = &VideoReport{VideoID: inputs[i].Video.ID}
				}
				rep.Err = err
				reports[i] = *rep
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &IngestReport{Videos: reports}
	for _, r := range reports {
		if r.Err != nil {
			report.FailedVideos++
		}
		report.FailedChunks += len(r.Failed)
	}
	log.Printf("Ingestion finished: %d videos, %d failed videos, %d failed chunks",
		len(inputs), report.FailedVideos, report.FailedChunks)

	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx); err != nil {
			return report, fmt.Errorf("failed to refresh lexical snapshot: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

type pendingChunk struct {
	chunk  *domain.Chunk
	vector []float32
	failed bool
}

// IngestVideo runs the write path for one video. A malformed transcript
// aborts the video before anything is written. Chunk-level failures are
// reported in VideoReport.Failed and do not stop the remaining chunks.
func (s *IngestService) IngestVideo(ctx context.Context, in VideoInput, opts IngestOptions) (*VideoReport, error) {
	video := in.Video
	if video.Duration == 0 {
		video.Duration = in.Transcript.Duration()
	}
	if err := domain.ValidateVideo(&video); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMissingRequiredField, err)
	}

	ctx, span := telemetry.StartSpan(ctx, "IngestService.IngestVideo", telemetry.SpanAttributes{
		VideoID:   video.ID,
		Operation: "ingest",
	})
	defer span.End()

	raws, err := s.chunker.ChunkAll(video.ID, in.Transcript)
	if err != nil {
		log.Printf("Skipping video %s: %v", video.ID, err)
		telemetry.CaptureError(ctx, err)
		return nil, err
	}

	report := &VideoReport{VideoID: video.ID, Chunks: len(raws)}

	if err := s.videos.Upsert(ctx, &video); err != nil {
		span.SetError(err)
		return report, fmt.Errorf("failed to store video %s: %w", video.ID, err)
	}

	if opts.Reset {
		if err := s.reset(ctx, video.ID); err != nil {
			span.SetError(err)
			return report, err
		}
	}

	pending := make([]*pendingChunk, len(raws))
	for i := range raws {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		pending[i] = &pendingChunk{chunk: s.enrich(ctx, raws, i, video, report)}
	}

	if err := s.embed(ctx, pending, report); err != nil {
		return report, err
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if p.failed {
			continue
		}
		if err := s.store(ctx, p, video); err != nil {
			log.Printf("Chunk %s failed: %v", p.chunk.ID, err)
			telemetry.CaptureError(ctx, err)
			report.Failed = append(report.Failed, p.chunk.ID)
			continue
		}
		report.Stored++
	}

	log.Printf("Ingested video %s: %d chunks, %d stored, %d embedded, %d degraded, %d failed",
		video.ID, report.Chunks, report.Stored, report.Embedded, report.Degraded, len(report.Failed))
	return report, nil
}

func (s *IngestService) reset(ctx context.Context, videoID string) error {
	vectors, err := s.vectors.DeleteByVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to reset vectors of %s: %w", videoID, err)
	}
	rows, err := s.chunks.DeleteByVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to reset chunks of %s: %w", videoID, err)
	}
	log.Printf("Reset video %s: removed %d chunks and %d vectors", videoID, rows, vectors)
	return nil
}

func (s *IngestService) enrich(ctx context.Context, raws []domain.RawChunk, i int, video domain.Video, report *VideoReport) *domain.Chunk {
	raw := raws[i]
	if strings.TrimSpace(raw.Text) == "" {
		return domain.NewChunk(video.ID, raw, "", false)
	}

	var prev, next *domain.RawChunk
	if i > 0 {
		prev = &raws[i-1]
	}
	if i+1 < len(raws) {
		next = &raws[i+1]
	}

	res := s.enricher.Enrich(ctx, raw, prev, next, video)
	c := domain.NewChunk(video.ID, raw, res.Text, res.Degraded)
	if res.Degraded {
		report.Degraded++
		degraded := domain.NewEnrichmentDegraded(c.ID, res.Attempts, res.Cause)
		log.Printf("%v", degraded)
		telemetry.AddBreadcrumb(ctx, "enrichment", degraded.Error())
	}
	return c
}

// embed fills vectors for every chunk with text. A failed batch marks its
// chunks failed; a cancelled context stops the run.
func (s *IngestService) embed(ctx context.Context, pending []*pendingChunk, report *VideoReport) error {
	var todo []*pendingChunk
	for _, p := range pending {
		if p.chunk.EnrichedText != "" {
			todo = append(todo, p)
		}
	}

	for start := 0; start < len(todo); start += s.cfg.EmbedBatchSize {
		batch := todo[start:min(start+s.cfg.EmbedBatchSize, len(todo))]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.chunk.EnrichedText
		}

		vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
		if err == nil && len(vectors) != len(batch) {
			err = fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Printf("Embedding batch of %d chunks failed: %v", len(batch), err)
			telemetry.CaptureError(ctx, err)
			for _, p := range batch {
				p.failed = true
				report.Failed = append(report.Failed, p.chunk.ID)
			}
			continue
		}
		for i, p := range batch {
			p.vector = vectors[i]
		}
		report.Embedded += len(batch)
	}
	return nil
}

// store writes the derived vector entry, then the authoritative row. Both
// writes are idempotent on the chunk id, so the pair is retried as a unit.
// When every attempt fails the vector entry is removed again so no vector
// is left without its row.
func (s *IngestService) store(ctx context.Context, p *pendingChunk, video domain.Video) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.StoreMaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.wait(ctx, time.Duration(attempt-1)*s.cfg.StoreBackoff); err != nil {
				return err
			}
		}

		lastErr = s.writeOnce(ctx, p, video)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	if p.vector != nil {
		if err := s.vectors.DeleteByRef(context.WithoutCancel(ctx), p.chunk.VectorRef); err != nil {
			lastErr = errors.Join(lastErr, fmt.Errorf("failed to remove orphan vector: %w", err))
		}
	}
	return domain.NewStorageInconsistency(p.chunk.ID, lastErr)
}

func (s *IngestService) writeOnce(ctx context.Context, p *pendingChunk, video domain.Video) error {
	if p.vector != nil {
		rec := domain.EmbeddingRecordFor(p.chunk, &video, p.vector)
		if err := s.vectors.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("vector write: %w", err)
		}
	}
	if err := s.chunks.Upsert(ctx, p.chunk); err != nil {
		return fmt.Errorf("chunk write: %w", err)
	}
	return nil
}

func (s *IngestService) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
