// Package api serves the loaded session over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tomoru1741/Bloxd-Tools/internal/coverage"
	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
	"github.com/tomoru1741/Bloxd-Tools/internal/storage"
	"go.uber.org/zap"
)

// State is the session surface the API reads and refreshes.
type State interface {
	Snapshot() session.Snapshot
	LastErrors() (items, dict error)
	Coverage() *coverage.Report
	Groups() []coverage.MissingGroup
	Mode() session.LoadMode
	Refresh(ctx context.Context) (*session.Outcome, error)
	RefreshItems(ctx context.Context) (*session.Outcome, error)
	RefreshDictionary(ctx context.Context) (*session.Outcome, error)
}

// RunLister reads the refresh history.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

// TextureSource mines block textures from the game bundle.
type TextureSource interface {
	MineTextures(ctx context.Context) (map[string]extractor.BlockTexture, error)
}

// Server holds the HTTP server dependencies
type Server struct {
	state    State
	runs     RunLister
	textures TextureSource
	metrics  http.Handler
	origins  []string
	logger   *zap.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithRuns enables GET /api/runs.
func WithRuns(r RunLister) Option {
	return func(s *Server) { s.runs = r }
}

// WithTextures enables GET /api/textures.
func WithTextures(t TextureSource) Option {
	return func(s *Server) { s.textures = t }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a new API server
func New(state State, opts ...Option) *Server {
	s := &Server{
		state:   state,
		origins: []string{"*"},
		logger:  zap.NewNop(),
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Session data
		r.Get("/items", s.handleGetItems)
		r.Get("/coverage", s.handleGetCoverage)
		r.Get("/view", s.handleGetView)
		r.Get("/groups", s.handleGetGroups)
		r.Get("/status", s.handleGetStatus)

		// Templates
		r.Get("/template", s.handleGetTemplateJSON)
		r.Get("/template.txt", s.handleGetTemplateText)

		// Bundle mining and history
		r.Get("/textures", s.handleGetTextures)
		r.Get("/runs", s.handleGetRuns)

		r.Post("/refresh", s.handleRefresh)
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	// Health check
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
