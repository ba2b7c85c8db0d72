package repository

import (
	"context"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepository is the authoritative store for transcript chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// Upsert writes a chunk keyed by its id, so retries after a partial failure
// converge on the same row.
func (r *ChunkRepository) Upsert(ctx context.Context, c *domain.Chunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO chunks
			(id, video_id, chunk_index, start_time, end_time, raw_text, enriched_text, vector_ref, degraded, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			raw_text = EXCLUDED.raw_text,
			enriched_text = EXCLUDED.enriched_text,
			vector_ref = EXCLUDED.vector_ref,
			degraded = EXCLUDED.degraded`,
		c.ID,
		c.VideoID,
		c.Index,
		c.Start,
		c.End,
		c.RawText,
		c.EnrichedText,
		c.VectorRef,
		c.Degraded,
		createdAt,
	)
	return err
}

// DeleteByVideo removes every chunk of a video and returns how many were removed.
func (r *ChunkRepository) DeleteByVideo(ctx context.Context, videoID string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE video_id = $1`, videoID)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *ChunkRepository) ListByVideo(ctx context.Context, videoID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, video_id, chunk_index, start_time, end_time, raw_text, enriched_text, vector_ref::text, degraded, created_at
		 FROM chunks
		 WHERE video_id = $1
		 ORDER BY chunk_index`,
		videoID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.VideoID, &c.Index, &c.Start, &c.End, &c.RawText, &c.EnrichedText, &c.VectorRef, &c.Degraded, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// ListIndexable returns every chunk joined with its video, in a stable order,
// for building the lexical snapshot.
func (r *ChunkRepository) ListIndexable(ctx context.Context) ([]domain.VideoChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.video_id, c.chunk_index, c.start_time, c.end_time, c.raw_text, c.enriched_text,
		        c.vector_ref::text, c.degraded, c.created_at,
		        v.id, v.chapter, v.title, v.url, v.duration, v.created_at
		 FROM chunks c
		 JOIN videos v ON v.id = c.video_id
		 ORDER BY c.id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VideoChunk
	for rows.Next() {
		var vc domain.VideoChunk
		c, v := &vc.Chunk, &vc.Video
		if err := rows.Scan(
			&c.ID, &c.VideoID, &c.Index, &c.Start, &c.End, &c.RawText, &c.EnrichedText,
			&c.VectorRef, &c.Degraded, &c.CreatedAt,
			&v.ID, &v.Chapter, &v.Title, &v.URL, &v.Duration, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}
