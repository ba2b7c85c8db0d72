package server

import (
	"net/http"

	"github.com/RyanNg1403/tieplm/internal/api"
	"github.com/RyanNg1403/tieplm/internal/api/handlers"
	"github.com/RyanNg1403/tieplm/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AskHandler     *handlers.AskHandler
	SessionHandler *handlers.SessionHandler
	VideoHandler   *handlers.VideoHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ask", cfg.AskHandler.Ask)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", cfg.SessionHandler.List)
		r.Get("/{id}/messages", cfg.SessionHandler.Messages)
		r.Delete("/{id}", cfg.SessionHandler.Delete)
	})

	r.Get("/videos", cfg.VideoHandler.List)
	r.Get("/chapters", cfg.VideoHandler.Chapters)

	return r
}
