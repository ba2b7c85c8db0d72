package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSessionRepository mocks session persistence
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockSessionRepository) List(ctx context.Context, filter SessionListFilter) ([]*domain.Session, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestSessionService_ListPaginates(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewSessionService(repo, &messageStore{})
	ctx := context.Background()

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	page := []*domain.Session{
		{ID: "s2", TaskType: domain.TaskTypeQA, UpdatedAt: t0.Add(time.Minute)},
		{ID: "s1", TaskType: domain.TaskTypeQA, UpdatedAt: t0},
	}
	repo.On("List", ctx, SessionListFilter{TaskType: domain.TaskTypeQA, Limit: 2}).Return(page, nil).Once()

	res, err := svc.List(ctx, domain.TaskTypeQA, 2, "")
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.True(t, res.HasMore)

	cursor, err := pagination.DecodeCursor(res.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "s1", cursor.LastID)
	assert.True(t, t0.Equal(cursor.Timestamp))

	repo.On("List", ctx, mock.MatchedBy(func(f SessionListFilter) bool {
		return f.Cursor != nil && f.Cursor.LastID == "s1" && f.Limit == 2
	})).Return([]*domain.Session{}, nil).Once()

	res, err = svc.List(ctx, domain.TaskTypeQA, 2, res.Cursor)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.False(t, res.HasMore)
	repo.AssertExpectations(t)
}

func TestSessionService_ListValidation(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewSessionService(repo, &messageStore{})
	ctx := context.Background()

	_, err := svc.List(ctx, "poem", 10, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTaskType)

	_, err = svc.List(ctx, "", 10, "not-a-cursor!")
	assert.True(t, domain.IsCode(err, domain.ErrCodeValidation))

	repo.On("List", ctx, SessionListFilter{Limit: maxSessionListLimit}).Return(nil, nil).Once()
	res, err := svc.List(ctx, "", 5000, "")
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	repo.AssertExpectations(t)
}

func TestSessionService_Messages(t *testing.T) {
	repo := new(MockSessionRepository)
	messages := &messageStore{messages: []*domain.Message{
		{ID: "m1", SessionID: "s1", Role: domain.RoleUser, Content: "q"},
		{ID: "m2", SessionID: "s1", Role: domain.RoleAssistant, Content: "a [1]"},
		{ID: "m3", SessionID: "s2", Role: domain.RoleUser, Content: "other"},
	}}
	svc := NewSessionService(repo, messages)
	ctx := context.Background()

	repo.On("GetByID", ctx, "s1").Return(&domain.Session{ID: "s1"}, nil)
	repo.On("GetByID", ctx, "s3").Return(&domain.Session{ID: "s3"}, nil)
	repo.On("GetByID", ctx, "nope").Return(nil, domain.ErrSessionNotFound)

	got, err := svc.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)

	got, err = svc.Messages(ctx, "s3")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.Messages(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionService_Delete(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewSessionService(repo, &messageStore{})
	ctx := context.Background()

	repo.On("Delete", ctx, "s1").Return(nil).Once()
	repo.On("Delete", ctx, "gone").Return(domain.ErrSessionNotFound).Once()
	repo.On("Delete", ctx, "broken").Return(errors.New("db down")).Once()

	assert.NoError(t, svc.Delete(ctx, "s1"))
	assert.ErrorIs(t, svc.Delete(ctx, "gone"), domain.ErrSessionNotFound)
	assert.Error(t, svc.Delete(ctx, "broken"))
	repo.AssertExpectations(t)
}
