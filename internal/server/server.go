// Package server exposes a Searcher and its point store over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/source"
)

// defaultTopK applies when a search request omits top_k.
const defaultTopK = 10

// Config configures a new Server instance.
type Config struct {
	Store    source.Store
	Searcher *vecsearch.Searcher

	// Metrics, if set, is served at GET /metrics.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server is an HTTP server for collection management and search.
type Server struct {
	store    source.Store
	searcher *vecsearch.Searcher
	metrics  http.Handler
	logger   *slog.Logger
}

// New creates a Server. Writes go through a store that invalidates the
// searcher's cached index of every collection they touch.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		store:    source.WithInvalidation(cfg.Store, cfg.Searcher),
		searcher: cfg.Searcher,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Handler returns an http.Handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/v1/collections", s.handleCollectionList)
	mux.HandleFunc("POST /api/v1/collections/{name}", s.handleCollectionCreate)
	mux.HandleFunc("GET /api/v1/collections/{name}", s.handleCollectionGet)
	mux.HandleFunc("DELETE /api/v1/collections/{name}", s.handleCollectionDelete)

	mux.HandleFunc("POST /api/v1/collections/{name}/payload", s.handlePayloadAdd)
	mux.HandleFunc("GET /api/v1/collections/{name}/payloads", s.handlePayloadList)

	mux.HandleFunc("POST /api/v1/collections/{name}/search", s.handleSearch)
	mux.HandleFunc("POST /api/v1/collections/{name}/search_by_id", s.handleSearchByID)
	mux.HandleFunc("POST /api/v1/similarity", s.handleSimilarity)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.LogAttrs(r.Context(), slog.LevelDebug, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
