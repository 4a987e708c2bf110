// Package server exposes enrichment and email generation over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/hermes/internal/llm"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const requestTimeout = 3 * time.Minute

// Enricher enriches a batch of orders relative to an origin address.
type Enricher interface {
	Enrich(ctx context.Context, origin string, batch []models.Order) ([]models.Order, error)
}

// Generators hands out text generation providers.
type Generators interface {
	Build(ctx context.Context, name, model string) (llm.Provider, error)
	Active() llm.Provider
}

// Options configure the HTTP surface.
type Options struct {
	Addr        string
	Origin      string // default origin for enrichment requests
	Locale      orders.Locale
	CORSOrigins []string
	// EmailInterval is the minimum spacing between email requests. Zero disables the limit.
	EmailInterval time.Duration
}

// Server serves the hermes HTTP API.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
	enricher   Enricher
	generators Generators
	gatherer   prometheus.Gatherer
	opts       Options
	limiter    *rate.Limiter
}

// New creates a server with /healthz, /metrics and the /v1 routes.
func New(log *slog.Logger, enricher Enricher, generators Generators, gatherer prometheus.Gatherer, opts Options) *Server {
	if opts.Locale == "" {
		opts.Locale = orders.LocaleZH
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	limit := rate.Inf
	if opts.EmailInterval > 0 {
		limit = rate.Every(opts.EmailInterval)
	}

	s := &Server{
		log:        log,
		enricher:   enricher,
		generators: generators,
		gatherer:   gatherer,
		opts:       opts,
		limiter:    rate.NewLimiter(limit, 1),
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/orders/enrich", s.handleEnrich)
		r.With(s.rateLimitEmails).Post("/emails", s.handleEmail)
	})

	return r
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) rateLimitEmails(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
