// Package web exposes the import pipeline over HTTP: synchronous and
// asynchronous submission plus job polling, with a JSON error contract.
package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contactflow/importer/internal/contact"
	"github.com/contactflow/importer/internal/importer"
	"github.com/contactflow/importer/internal/jobs"
	mw "github.com/contactflow/importer/internal/web/middleware"
)

// DefaultMaxFileSize is the upload ceiling: 500 MB.
const DefaultMaxFileSize = 500 << 20

// ImportRunner is the pipeline as the handlers see it.
type ImportRunner interface {
	Run(ctx context.Context, filename, contentType string, r io.Reader, opts importer.Options) (contact.Result, error)
	RunAsync(ctx context.Context, filename, contentType, path string, opts importer.Options) (string, error)
}

// Config tunes the HTTP boundary. Zero values take sensible defaults.
type Config struct {
	MaxFileSize    int64
	RequestTimeout time.Duration

	// Rate requests per RateWindow per client IP. Zero disables limiting.
	Rate       int
	RateWindow time.Duration

	// Policy is the server-wide row validation policy applied to every run.
	Policy contact.Policy
}

// Server is the HTTP server for the contact import API.
type Server struct {
	runner   ImportRunner
	jobs     jobs.Store
	gatherer prometheus.Gatherer
	cfg      Config
	log      *slog.Logger

	router *chi.Mux
	server *http.Server
}

func NewServer(runner ImportRunner, jobStore jobs.Store, gatherer prometheus.Gatherer, cfg Config, log *slog.Logger) *Server {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Minute
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		runner:   runner,
		jobs:     jobStore,
		gatherer: gatherer,
		cfg:      cfg,
		log:      log,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate > 0 {
		window := s.cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		s.router.Use(newRateLimiter(s.cfg.Rate, window).middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/imports", func(r chi.Router) {
		r.Post("/", s.handleImport)
		r.Post("/async", s.handleImportAsync)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.RequestTimeout,
		WriteTimeout: s.cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds hardening headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
