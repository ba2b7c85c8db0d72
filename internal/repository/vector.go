package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorRepository stores chunk embeddings in pgvector with the metadata
// needed to filter without joining chunks.
type VectorRepository struct {
	db dbtx
}

func NewVectorRepository(pool *pgxpool.Pool) *VectorRepository {
	return &VectorRepository{db: pool}
}

func NewVectorRepositoryWithTx(tx pgx.Tx) *VectorRepository {
	return &VectorRepository{db: tx}
}

func (r *VectorRepository) Upsert(ctx context.Context, rec domain.EmbeddingRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chunk_embeddings
			(vector_ref, chunk_id, chapter, video_id, video_title, video_url, start_time, end_time, embedding)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (vector_ref) DO UPDATE SET
			chunk_id = EXCLUDED.chunk_id,
			chapter = EXCLUDED.chapter,
			video_id = EXCLUDED.video_id,
			video_title = EXCLUDED.video_title,
			video_url = EXCLUDED.video_url,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			embedding = EXCLUDED.embedding`,
		rec.VectorRef,
		rec.ChunkID,
		rec.Chapter,
		rec.VideoID,
		rec.VideoTitle,
		rec.VideoURL,
		rec.Start,
		rec.End,
		pgvector.NewVector(rec.Vector),
	)
	return err
}

// hnsw.ef_search accepts values in [1, 1000].
const maxEfSearch = 1000

// Search returns the nearest chunks by cosine similarity. Filters are applied
// in the WHERE clause so the limit counts only matching rows. The HNSW scan
// is made iterative and sized to the limit, otherwise it stops after
// ef_search rows and filters what is left.
func (r *VectorRepository) Search(ctx context.Context, vector []float32, limit int, filter service.VectorFilter) ([]service.VectorHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	var chapters []string
	if len(filter.Chapters) > 0 {
		chapters = filter.Chapters
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin vector search: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`SELECT set_config('hnsw.iterative_scan', 'strict_order', true),
		        set_config('hnsw.ef_search', $1, true)`,
		strconv.Itoa(min(limit, maxEfSearch)),
	); err != nil {
		return nil, fmt.Errorf("failed to tune vector scan: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT chunk_id, 1 - (embedding <=> $1) AS score
		 FROM chunk_embeddings
		 WHERE ($2::text[] IS NULL OR chapter = ANY($2))
		   AND ($3 = '' OR video_id = $3)
		 ORDER BY embedding <=> $1, chunk_id
		 LIMIT $4`,
		pgvector.NewVector(vector), chapters, filter.VideoID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []service.VectorHit
	for rows.Next() {
		var h service.VectorHit
		if err := rows.Scan(&h.ChunkID, &h.Score); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *VectorRepository) DeleteByVideo(ctx context.Context, videoID string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chunk_embeddings WHERE video_id = $1`, videoID)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *VectorRepository) DeleteByRef(ctx context.Context, vectorRef string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunk_embeddings WHERE vector_ref = $1`, vectorRef)
	return err
}
