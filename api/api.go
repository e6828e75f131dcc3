// Package api exposes the service over HTTP (chi) and as MCP tools. All
// responses are JSON; errors carry {"error": "..."}.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lienwatch/lienwatch/pipeline"
	"github.com/lienwatch/lienwatch/registry"
	"github.com/lienwatch/lienwatch/schedule"
	"github.com/lienwatch/lienwatch/store"
)

// Retrier re-submits one lien to the external service.
type Retrier interface {
	RetryOne(ctx context.Context, lienID string) (*store.Lien, error)
}

// Server holds the handler dependencies.
type Server struct {
	pl      *pipeline.Pipeline
	reg     *registry.Registry
	store   store.Store
	retrier Retrier
	sched   *schedule.Runner
	logger  *slog.Logger
}

// NewServer creates the API server.
func NewServer(pl *pipeline.Pipeline, reg *registry.Registry, s store.Store, retrier Retrier, sched *schedule.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		pl:      pl,
		reg:     reg,
		store:   s,
		retrier: retrier,
		sched:   sched,
		logger:  logger.With("component", "api"),
	}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/run", s.handleRun)
			r.Post("/stop", s.handleStop)
			r.Get("/status", s.handleStatus)
		})
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Patch("/{id}", s.handlePatchSource)
		})
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", s.handleGetSchedule)
			r.Post("/", s.handleSetSchedule)
		})
		r.Post("/liens/{id}/retry-sync", s.handleRetrySync)
		r.Get("/liens", s.handleListLiens)
		r.Get("/audit", s.handleListAudit)
		r.Route("/export", func(r chi.Router) {
			r.Get("/liens.csv", s.handleExportLiens)
			r.Get("/audit.csv", s.handleExportAudit)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("api: encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
