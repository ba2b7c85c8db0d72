package repository

import (
	"context"
	"errors"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VideoRepository struct {
	db dbtx
}

func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{db: pool}
}

func NewVideoRepositoryWithTx(tx pgx.Tx) *VideoRepository {
	return &VideoRepository{db: tx}
}

// Upsert inserts a video. An existing row is left untouched: video identity
// is immutable once ingested.
func (r *VideoRepository) Upsert(ctx context.Context, v *domain.Video) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO videos (id, chapter, title, url, duration, transcript_path)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		v.ID, v.Chapter, v.Title, v.URL, v.Duration, nullableString(v.TranscriptPath),
	)
	return err
}

func (r *VideoRepository) GetByID(ctx context.Context, id string) (*domain.Video, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, chapter, title, url, duration, transcript_path, created_at
		 FROM videos WHERE id = $1`,
		id,
	)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVideoNotFound
		}
		return nil, err
	}
	return v, nil
}

// List returns videos ordered by chapter then title. An empty chapter lists all.
func (r *VideoRepository) List(ctx context.Context, chapter string) ([]*domain.Video, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, chapter, title, url, duration, transcript_path, created_at
		 FROM videos
		 WHERE ($1 = '' OR chapter = $1)
		 ORDER BY chapter, title, id`,
		chapter,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*domain.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *VideoRepository) ListChapters(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT chapter FROM videos ORDER BY chapter`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// Delete removes a video and, through the foreign key, its chunks.
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrVideoNotFound
	}
	return nil
}

func scanVideo(row pgx.Row) (*domain.Video, error) {
	var v domain.Video
	var transcriptPath *string
	if err := row.Scan(&v.ID, &v.Chapter, &v.Title, &v.URL, &v.Duration, &transcriptPath, &v.CreatedAt); err != nil {
		return nil, err
	}
	if transcriptPath != nil {
		v.TranscriptPath = *transcriptPath
	}
	return &v, nil
}
