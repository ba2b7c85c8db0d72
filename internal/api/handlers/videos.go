package handlers

import (
	"context"
	"net/http"

	"github.com/RyanNg1403/tieplm/internal/api"
	"github.com/RyanNg1403/tieplm/internal/domain"
)

type VideoCatalog interface {
	List(ctx context.Context, chapter string) ([]*domain.Video, error)
	ListChapters(ctx context.Context) ([]string, error)
}

type VideoHandler struct {
	repo VideoCatalog
}

func NewVideoHandler(repo VideoCatalog) *VideoHandler {
	return &VideoHandler{repo: repo}
}

type VideoResponse struct {
	ID       string  `json:"id"`
	Chapter  string  `json:"chapter"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := h.repo.List(r.Context(), r.URL.Query().Get("chapter"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, &VideoResponse{
			ID:       v.ID,
			Chapter:  v.Chapter,
			Title:    v.Title,
			URL:      v.URL,
			Duration: v.Duration,
		})
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *VideoHandler) Chapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := h.repo.ListChapters(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if chapters == nil {
		chapters = []string{}
	}
	api.Success(w, http.StatusOK, chapters)
}
