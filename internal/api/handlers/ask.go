package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/RyanNg1403/tieplm/internal/api"
	"github.com/RyanNg1403/tieplm/internal/api/middleware"
	"github.com/RyanNg1403/tieplm/internal/domain"
	"github.com/RyanNg1403/tieplm/internal/service"
)

type Generator interface {
	Submit(ctx context.Context, req service.SubmitRequest) (<-chan domain.Event, error)
}

type AskHandler struct {
	svc Generator
}

func NewAskHandler(svc Generator) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	Query     string   `json:"query"`
	TaskType  string   `json:"task_type"`
	Chapters  []string `json:"chapters,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	VideoID   string   `json:"video_id,omitempty"`
}

type TokenEvent struct {
	Content string `json:"content"`
}

type SourcesEvent struct {
	Sources   []domain.SourceReference `json:"sources"`
	SessionID string                   `json:"session_id"`
}

type DoneEvent struct {
	Content   string                   `json:"content"`
	Sources   []domain.SourceReference `json:"sources"`
	SessionID string                   `json:"session_id"`
	MessageID string                   `json:"message_id"`
}

type ErrorEvent struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
}

// Ask validates the request and then streams generation events over SSE.
// Errors raised before the first event are plain JSON responses.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	events, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		Query:     req.Query,
		TaskType:  domain.TaskType(req.TaskType),
		Chapters:  req.Chapters,
		SessionID: req.SessionID,
		VideoID:   req.VideoID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sse, err := api.NewSSEWriter(w)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	for ev := range events {
		name, payload := eventPayload(ev)
		if err := sse.Send(name, payload); err != nil {
			log.Printf("ask stream closed: request=%s err=%v", middleware.GetRequestID(r.Context()), err)
			return
		}
	}
}

func eventPayload(ev domain.Event) (string, interface{}) {
	switch ev.Type {
	case domain.EventToken:
		return string(ev.Type), TokenEvent{Content: ev.Token}
	case domain.EventSources:
		return string(ev.Type), SourcesEvent{Sources: nonNilSources(ev.Sources), SessionID: ev.SessionID}
	case domain.EventDone:
		return string(ev.Type), DoneEvent{
			Content:   ev.Content,
			Sources:   nonNilSources(ev.Sources),
			SessionID: ev.SessionID,
			MessageID: ev.MessageID,
		}
	default:
		return string(domain.EventError), ErrorEvent{Error: ev.Error, SessionID: ev.SessionID}
	}
}

func nonNilSources(sources []domain.SourceReference) []domain.SourceReference {
	if sources == nil {
		return []domain.SourceReference{}
	}
	return sources
}
