// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/chartrisk/internal/metrics"
	"github.com/ppiankov/chartrisk/internal/model"
	"github.com/ppiankov/chartrisk/internal/normalize"
	"github.com/ppiankov/chartrisk/internal/pipeline"
	"github.com/ppiankov/chartrisk/internal/rules"
)

// Analyzer runs one analysis request
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) *model.AnalysisResult
}

// Defaults fill request fields the client leaves empty
type Defaults struct {
	Mode       model.AnalysisMode
	Discipline model.Discipline
	Strict     bool
	Sections   bool
}

// Server is the HTTP API server for chartrisk.
type Server struct {
	router   chi.Router
	analyzer Analyzer
	store    *rules.Store
	registry *normalize.Registry
	metrics  *metrics.Recorder
	log      *slog.Logger
	cfg      model.ServerConfig
	defaults Defaults
}

// NewServer creates and configures the HTTP server. store and rec may be nil.
func NewServer(analyzer Analyzer, store *rules.Store, rec *metrics.Recorder, log *slog.Logger, cfg model.ServerConfig, defaults Defaults) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		analyzer: analyzer,
		store:    store,
		registry: normalize.NewRegistry(),
		metrics:  rec,
		log:      log.With("component", "api"),
		cfg:      cfg,
		defaults: defaults,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	if s.cfg.EnableMetrics && s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/rubrics", s.handleRubrics)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
