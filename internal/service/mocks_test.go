package service

import (
	"context"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/search"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient mocks query embedding
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockVectorStore mocks the derived embedding store
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, rec domain.EmbeddingRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockVectorStore) Search(ctx context.Context, vector []float32, limit int, filter VectorFilter) ([]VectorHit, error) {
	args := m.Called(ctx, vector, limit, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VectorHit), args.Error(1)
}

func (m *MockVectorStore) DeleteByVideo(ctx context.Context, videoID string) (int64, error) {
	args := m.Called(ctx, videoID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVectorStore) DeleteByRef(ctx context.Context, vectorRef string) error {
	return m.Called(ctx, vectorRef).Error(0)
}

// staticSnapshots always returns the same snapshot
type staticSnapshots struct {
	snap *search.Snapshot
}

func (s staticSnapshots) Current() *search.Snapshot { return s.snap }
