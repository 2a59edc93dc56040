package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/mdconsole/internal/config"
	"github.com/me/mdconsole/internal/metrics"
	"github.com/me/mdconsole/internal/store"
	"github.com/me/mdconsole/pkg/model"
)

// Server is the master-data REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	metrics   *metrics.Collector // optional; nil disables /metrics
	now       func() time.Time
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithMetrics records request and mutation metrics and serves /metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithNow overrides the clock used when a request carries no audit time.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	if s.metrics != nil {
		r.Use(metricsMiddleware(s.metrics))
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		mount(r, newResource(s, model.DesignationEntity, s.store.Designations()))
		mount(r, newResource(s, model.PlantEntity, s.store.Plants()))
		mount(r, newResource(s, model.PlantAssignmentEntity, s.store.PlantAssignments()))
		mount(r, newResource(s, model.DocumentEntity, s.store.Documents()))
	})
}

// mount registers the list/create/update/delete routes of one entity.
func mount[T model.Record, PT model.RecordPtr[T]](r chi.Router, res *resource[T, PT]) {
	r.Route("/"+res.entity.Plural, func(r chi.Router) {
		r.Get("/", res.handleList)
		r.Post("/", res.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", res.handleGet)
			r.Put("/", res.handleUpdate)
			r.Delete("/", res.handleDelete)
		})
	})
}
