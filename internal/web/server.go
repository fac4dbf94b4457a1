// Package web provides the HTTP surface for the movie cleaner.
//
// Every request that carries a CSV gets its own Dataset, so handlers share
// nothing but configuration, the rate limiter, the clean-slot limiter and
// the metrics registry.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/moviedata/internal/config"
	"github.com/JonMunkholm/moviedata/internal/core"
	mw "github.com/JonMunkholm/moviedata/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the HTTP server for the movie cleaner.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  *chi.Mux
	server  *http.Server
	limiter *core.Limiter
	visits  *mw.RateLimiter
	metrics *Metrics
	started time.Time
}

// NewServer creates a Server from cfg. A nil logger uses slog.Default().
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := core.NewLimiter(cfg.Server.MaxConcurrent, cfg.Server.SlotWait())
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		router:  chi.NewRouter(),
		limiter: limiter,
		metrics: NewMetrics(limiter),
		started: time.Now(),
	}
	if cfg.Rate.Enabled {
		s.visits = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst, 10*time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.metrics.Instrument)

	if len(s.cfg.Server.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
			MaxAge:         300,
		}))
	}

	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		if s.visits != nil {
			r.Use(s.visits.Handler(func(w http.ResponseWriter, r *http.Request) {
				s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			}))
		}
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

		r.Post("/clean", s.handleClean)
		r.Post("/report", s.handleReport)
	})
}

// Start listens on the configured address until Shutdown is called.
// It returns nil after a clean shutdown. ctx bounds background work such as
// rate-limiter sweeps, not in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	if s.visits != nil {
		go s.visits.Run(ctx, time.Minute)
	}

	s.logger.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight cleans.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	if drainErr := s.limiter.WaitForDrain(ctx); drainErr != nil && err == nil {
		err = drainErr
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLogger returns the server logger tagged with the request id.
func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON only; nothing to load
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
