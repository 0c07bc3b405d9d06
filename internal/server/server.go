// Package server provides the HTTP API for manabi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/manabi/internal/config"
	"github.com/hyperjump/manabi/internal/engine"
	"github.com/hyperjump/manabi/internal/ingest"
	"github.com/hyperjump/manabi/internal/search"
	"github.com/hyperjump/manabi/internal/storage"
)

// Server is the HTTP server for the manabi API.
type Server struct {
	searchSvc *search.Service
	ingestor  *ingest.Ingestor
	engine    *engine.Engine
	storage   storage.Storage
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	searchSvc *search.Service,
	ingestor *ingest.Ingestor,
	eng *engine.Engine,
	store storage.Storage,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		searchSvc: searchSvc,
		ingestor:  ingestor,
		engine:    eng,
		storage:   store,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/documents", s.handleIngestDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Get("/api/v1/clusters", s.handleListClusters)
	r.Get("/api/v1/clusters/{id}", s.handleGetCluster)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
