// Package server provides the HTTP API for CropSage.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cropsage/cropsage/internal/compliance"
	"github.com/cropsage/cropsage/internal/config"
	"github.com/cropsage/cropsage/internal/export"
	"github.com/cropsage/cropsage/internal/ingest"
	"github.com/cropsage/cropsage/internal/pipeline"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/vector"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server is the HTTP server for the CropSage API.
type Server struct {
	pipeline  *pipeline.Pipeline
	ingestor  *ingest.Ingestor
	store     storage.Store
	evaluator *compliance.Evaluator
	exporter  *export.Exporter
	vectors   vector.Index
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	pl *pipeline.Pipeline,
	ing *ingest.Ingestor,
	store storage.Store,
	eval *compliance.Evaluator,
	exp *export.Exporter,
	vectors vector.Index,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline:  pl,
		ingestor:  ing,
		store:     store,
		evaluator: eval,
		exporter:  exp,
		vectors:   vectors,
		config:    cfg,
		logger:    logger,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/observations", s.handleCreateObservation)
	r.Get("/api/v1/observations/{id}", s.handleGetObservation)

	r.Post("/api/v1/recommendations", s.handleCreateRecommendation)
	r.Get("/api/v1/recommendations/{id}", s.handleGetRecommendation)
	r.Get("/api/v1/recommendations/{id}/audit", s.handleGetAudit)
	r.Post("/api/v1/recommendations/{id}/feedback", s.handleAuditFeedback)
	r.Post("/api/v1/recommendations/{id}/compliance", s.handleEvaluateCompliance)
	r.Get("/api/v1/recommendations/{id}/compliance", s.handleGetCompliance)

	r.Post("/api/v1/references", s.handleCreateReference)
	r.Get("/api/v1/references", s.handleListReferences)
	r.Delete("/api/v1/references/{id}", s.handleDeleteReference)

	r.Get("/api/v1/export/training", s.handleExportTraining)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
