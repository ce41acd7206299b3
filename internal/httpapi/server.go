// Package httpapi exposes the process's liveness/status/metrics surface
// (spec SPEC_FULL.md §4.12): GET /healthz (process + dependency liveness),
// GET /status (uptime plus the caller's StatusFunc payload), and
// GET /metrics (Prometheus). Grounded on
// internal/interfaces/http/server.go's read-only admin Server (mux.Router,
// request-ID/logging/timeout middleware chain, graceful
// Start/Shutdown) — its CORS middleware and the candidates/explain/regime routes have no
// counterpart in this module's scope and are dropped in favor of the three
// ops endpoints SPEC_FULL.md names.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/m37335/threegate/internal/metricsx"
)

// HealthChecker reports whether a dependency the server surfaces on
// /healthz is reachable; it has the same shape as
// internal/router.HealthReporter, and cmd/threegate's DB checker satisfies it.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
	Name() string
}

// StatusFunc supplies the free-form payload for GET /status, composed by
// the caller from whichever services it wires (analysis.Service.Stats,
// threegate.Engine.Stats, collector run counts, ...).
type StatusFunc func() map[string]interface{}

// Config holds server configuration (spec SPEC_FULL.md §4.12).
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig matches the teacher's local-only defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:8090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the read-only ops HTTP surface.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
	checkers   []HealthChecker
	status     StatusFunc
	metrics    *metricsx.Registry
}

// New constructs a Server. status and metrics may be nil: /status then
// reports only uptime, and /metrics is not routed, so it gets the JSON 404
// response.
func New(cfg Config, metrics *metricsx.Registry, status StatusFunc, checkers ...HealthChecker) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		startTime: time.Now(),
		checkers:  checkers,
		status:    status,
		metrics:   metrics,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.timeoutMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

type healthStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	statuses := make([]healthStatus, 0, len(s.checkers))
	allHealthy := true
	for _, c := range s.checkers {
		healthy := c.Healthy(r.Context())
		statuses = append(statuses, healthStatus{Name: c.Name(), Healthy: healthy})
		allHealthy = allHealthy && healthy
	}

	code := http.StatusOK
	if !allHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"healthy":      allHealthy,
		"dependencies": statuses,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	if s.status != nil {
		for k, v := range s.status() {
			payload[k] = v
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encoding http response failed")
	}
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Debug().
			Str("request_id", fmt.Sprint(r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request handled")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Start runs the server until it errors or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("ops http server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ops http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("ops http server stopping")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
