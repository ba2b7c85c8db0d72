package repository

import (
	"context"
	"errors"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultSessionPageSize = 50

type SessionRepository struct {
	db dbtx
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: pool}
}

func NewSessionRepositoryWithTx(tx pgx.Tx) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_sessions (id, task_type, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.TaskType, s.Title, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT id::text, task_type, title, created_at, updated_at
		 FROM chat_sessions WHERE id::text = $1`,
		id,
	).Scan(&s.ID, &s.TaskType, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Touch bumps updated_at so recently used sessions list first.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chat_sessions SET updated_at = $1 WHERE id::text = $2`,
		at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// List returns sessions newest-first using keyset pagination on (updated_at, id).
func (r *SessionRepository) List(ctx context.Context, filter service.SessionListFilter) ([]*domain.Session, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSessionPageSize
	}

	var cursorTime *time.Time
	var cursorID string
	if filter.Cursor != nil {
		cursorTime = &filter.Cursor.Timestamp
		cursorID = filter.Cursor.LastID
	}

	rows, err := r.db.Query(ctx,
		`SELECT id::text, task_type, title, created_at, updated_at
		 FROM chat_sessions
		 WHERE ($1 = '' OR task_type = $1)
		   AND ($2::timestamptz IS NULL OR (updated_at, id::text) < ($2, $3))
		 ORDER BY updated_at DESC, id::text DESC
		 LIMIT $4`,
		string(filter.TaskType), cursorTime, cursorID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.TaskType, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// Delete removes a session; its messages go with it via ON DELETE CASCADE.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
