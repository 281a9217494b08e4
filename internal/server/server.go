// Package server provides the HTTP server that wires all services together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/raggrid/rag-grid/internal/bus"
	"github.com/raggrid/rag-grid/internal/engine"
	"github.com/raggrid/rag-grid/internal/metrics"
	"github.com/raggrid/rag-grid/internal/pkg/logger"
	"github.com/raggrid/rag-grid/internal/pkg/middleware"
)

// Server is the main HTTP server that wires the grid engine, the event
// bus, and the metrics endpoint together.
type Server struct {
	cfg        Config
	log        *logger.Logger
	httpServer *http.Server

	engine *engine.Engine
	bus    bus.Bus
	met    *metrics.Metrics

	gridHandler *GridHandler
	limiter     *middleware.RateLimiter

	mu      sync.Mutex
	started bool
}

// Config configures the server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit int

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout. SSE streams bypass it by
	// being served before the deadline applies, so keep it generous.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // SSE connections stay open indefinitely
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates a server over an already-constructed engine.
func New(cfg Config, eng *engine.Engine, eventBus bus.Bus, met *metrics.Metrics, log *logger.Logger) *Server {
	if cfg.Port == 0 {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:    cfg,
		log:    log.WithComponent("server"),
		engine: eng,
		bus:    eventBus,
		met:    met,
	}

	s.gridHandler = NewGridHandler(eng, s.log)

	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(cfg.RateLimit),
			Burst:             cfg.RateLimit * 2,
			MaxIdle:           5 * time.Minute,
		})
	}

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	handler := s.Routes()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.log.Error("bus close error", "error", err)
		}
	}

	s.started = false
	s.log.Info("server stopped")
	return nil
}

// Routes assembles the full handler chain: routing, CORS, optional rate
// limiting, the /v1 response wrapper, and request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	s.gridHandler.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/events", s.handleSSEEvents)
	if s.met != nil {
		mux.Handle("/metrics", s.met.Handler())
	}

	var handler http.Handler = mux
	handler = ResponseWrapperMiddleware(handler)
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = corsMiddleware(handler)
	return s.wrapWithLogging(handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

// corsMiddleware allows browser clients on other origins to reach the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// wrapWithLogging logs every request at debug with status and latency.
func (s *Server) wrapWithLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		handler.ServeHTTP(wrapped, r)

		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE streaming keeps working
// through the logging wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
