// Package server exposes partner asset uploads, pipeline runs and
// orchestrated builds over HTTP, and streams build stage events to websocket
// clients.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/brandkit/internal/config"
	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/logging"
	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/storage"
)

// Server is the brandkit HTTP API.
type Server struct {
	config  *config.Config
	store   storage.Store
	builds  *orchestrator.Orchestrator
	limiter *RateLimiter
	logger  logging.Logger
	handler http.Handler

	serverMutex sync.Mutex
	httpServer  *http.Server
}

// New creates a server. The orchestrator supplies the pipeline, the event
// bus and the build tree location.
func New(
	cfg *config.Config,
	store storage.Store,
	builds *orchestrator.Orchestrator,
	logger logging.Logger,
) (*Server, error) {
	if cfg == nil || store == nil || builds == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"server requires configuration, a store and an orchestrator")
	}

	s := &Server{
		config: cfg,
		store:  store,
		builds: builds,
		logger: logging.OrNop(logger).WithComponent("server"),
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/ws/events", s.handleEvents)

	r.Route("/assets", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimited)
			r.Post("/upload/{partnerId}", s.handleUpload)
			r.Post("/process/{partnerId}", s.handleProcess)
		})
		r.Get("/{partnerId}", s.handleListAssets)
		r.Get("/{partnerId}/{assetId}", s.handleDownload)
	})

	r.Route("/builds", func(r chi.Router) {
		r.With(s.rateLimited).Post("/", s.handleBuild)
		r.Get("/{buildId}", s.handleGetBuild)
	})

	return r
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.Middleware(next)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "http server failed")
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the HTTP server. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMutex.Lock()
	server := s.httpServer
	s.serverMutex.Unlock()
	if server == nil {
		return nil
	}
	s.logger.Info(ctx, "Shutting down HTTP server")
	return server.Shutdown(ctx)
}
