package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/RyanNg1403/tieplm/internal/api"
	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/pagination"
	"github.com/go-chi/chi/v5"
)

type SessionService interface {
	List(ctx context.Context, taskType domain.TaskType, limit int, cursor string) (pagination.PageResult[*domain.Session], error)
	Messages(ctx context.Context, sessionID string) ([]*domain.Message, error)
	Delete(ctx context.Context, sessionID string) error
}

type SessionHandler struct {
	svc SessionService
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type SessionResponse struct {
	ID        string `json:"id"`
	TaskType  string `json:"task_type"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type SessionListResponse struct {
	Items   []*SessionResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

type MessageResponse struct {
	ID        string                   `json:"id"`
	Role      string                   `json:"role"`
	Content   string                   `json:"content"`
	Sources   []domain.SourceReference `json:"sources"`
	CreatedAt string                   `json:"created_at"`
}

func sessionToResponse(s *domain.Session) *SessionResponse {
	return &SessionResponse{
		ID:        s.ID,
		TaskType:  string(s.TaskType),
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func messageToResponse(m *domain.Message) *MessageResponse {
	return &MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Sources:   nonNilSources(m.Sources),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// List returns sessions newest first, optionally filtered by task_type.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	page, err := h.svc.List(r.Context(), domain.TaskType(query.Get("task_type")), limit, query.Get("cursor"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*SessionResponse, 0, len(page.Items))
	for _, s := range page.Items {
		items = append(items, sessionToResponse(s))
	}

	api.Success(w, http.StatusOK, SessionListResponse{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	messages, err := h.svc.Messages(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, messageToResponse(m))
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
