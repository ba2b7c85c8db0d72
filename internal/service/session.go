package service

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/pagination"
)

const (
	defaultSessionListLimit = 20
	maxSessionListLimit     = 100
)

// SessionService reads and deletes chat history. Sessions are created and
// appended to by the Orchestrator only.
type SessionService struct {
	sessions SessionRepositoryInterface
	messages MessageRepositoryInterface
}

func NewSessionService(sessions SessionRepositoryInterface, messages MessageRepositoryInterface) *SessionService {
	return &SessionService{sessions: sessions, messages: messages}
}

// List returns a page of sessions, most recently used first. An empty
// taskType lists every task.
func (s *SessionService) List(ctx context.Context, taskType domain.TaskType, limit int, cursor string) (pagination.PageResult[*domain.Session], error) {
	if taskType != "" && !domain.IsValidTaskType(taskType) {
		return pagination.PageResult[*domain.Session]{}, domain.ErrInvalidTaskType
	}
	if limit <= 0 {
		limit = defaultSessionListLimit
	}
	if limit > maxSessionListLimit {
		limit = maxSessionListLimit
	}

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return pagination.PageResult[*domain.Session]{}, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	sessions, err := s.sessions.List(ctx, SessionListFilter{TaskType: taskType, Limit: limit, Cursor: decoded})
	if err != nil {
		return pagination.PageResult[*domain.Session]{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	return pagination.NewPage(sessions, limit,
		func(s *domain.Session) string { return s.ID },
		func(s *domain.Session) time.Time { return s.UpdatedAt },
	), nil
}

// Messages returns a session's messages in append order.
func (s *SessionService) Messages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	return messages, nil
}

// Delete removes a session and its messages.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}
