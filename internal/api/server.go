// Package api is the operational HTTP surface: health, cache status, and
// recently answered questions. It carries no bot functionality.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kaluza-tech/askbot/internal/answerlog"
	"github.com/kaluza-tech/askbot/internal/cache"
)

// StatusSource reports cache freshness for the status endpoint.
type StatusSource interface {
	Stats() []cache.ChannelStats
}

// AnswerSource lists recently answered questions. Optional.
type AnswerSource interface {
	Recent(ctx context.Context, limit int) ([]answerlog.Answer, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	provider string
	channels []string
	cache    StatusSource
	answers  AnswerSource
	logger   *slog.Logger
}

func NewServer(port int, provider string, channels []string, c StatusSource, answers AnswerSource, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		provider: provider,
		channels: channels,
		cache:    c,
		answers:  answers,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/askbot/status", s.status)
	router.Get("/api/v1/askbot/answers", s.recentAnswers)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("api server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    "askbot",
		"provider": s.provider,
		"channels": s.channels,
		"cache":    s.cache.Stats(),
	})
}

func (s *Server) recentAnswers(w http.ResponseWriter, r *http.Request) {
	if s.answers == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "answer log not configured"})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	answers, err := s.answers.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list answers", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list answers"})
		return
	}
	if answers == nil {
		answers = []answerlog.Answer{}
	}
	writeJSON(w, http.StatusOK, answers)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
