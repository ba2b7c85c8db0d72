package service

import (
	"context"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/pagination"
)

// VideoRepositoryInterface persists video identities.
type VideoRepositoryInterface interface {
	Upsert(ctx context.Context, v *domain.Video) error
	GetByID(ctx context.Context, id string) (*domain.Video, error)
	List(ctx context.Context, chapter string) ([]*domain.Video, error)
	ListChapters(ctx context.Context) ([]string, error)
}

// ChunkRepositoryInterface is the authoritative relational chunk store.
type ChunkRepositoryInterface interface {
	Upsert(ctx context.Context, c *domain.Chunk) error
	DeleteByVideo(ctx context.Context, videoID string) (int64, error)
	ListByVideo(ctx context.Context, videoID string) ([]*domain.Chunk, error)
	ListIndexable(ctx context.Context) ([]domain.VideoChunk, error)
}

// VectorFilter restricts dense search. Empty fields do not filter.
type VectorFilter struct {
	Chapters []string
	VideoID  string
}

// VectorHit is one dense search result.
type VectorHit struct {
	ChunkID string
	Score   float64
}

// VectorStore is the derived embedding store.
type VectorStore interface {
	Upsert(ctx context.Context, rec domain.EmbeddingRecord) error
	Search(ctx context.Context, vector []float32, limit int, filter VectorFilter) ([]VectorHit, error)
	DeleteByVideo(ctx context.Context, videoID string) (int64, error)
	DeleteByRef(ctx context.Context, vectorRef string) error
}

// SessionListFilter selects a page of sessions, newest first.
type SessionListFilter struct {
	TaskType domain.TaskType
	Limit    int
	Cursor   *pagination.Cursor
}

// SessionRepositoryInterface persists chat sessions.
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter SessionListFilter) ([]*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepositoryInterface appends and lists chat messages.
type MessageRepositoryInterface interface {
	Append(ctx context.Context, m *domain.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error)
}
