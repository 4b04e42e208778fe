package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Checker reports whether a dependency is reachable. The bus and the
// database both satisfy it.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// StatusProvider supplies extra fields for the health payload, e.g. the
// analytics service reports its current regime and tracked token count.
type StatusProvider func() map[string]any

// Server is the per-service operational endpoint: /health and /metrics.
type Server struct {
	service  string
	router   *mux.Router
	server   *http.Server
	checks   map[string]Checker
	status   StatusProvider
}

// NewServer builds the server for addr ("host:port"). checks are probed
// on every /health request; a nil status is allowed.
func NewServer(service, addr string, checks map[string]Checker, status StatusProvider) *Server {
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		checks:  checks,
		status:  status,
	}

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().Str("service", s.service).Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth probes every dependency and reports 200 only when all
// pass. Failures still return a full JSON body so operators can see
// which dependency is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthy := true
	deps := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Ping(ctx); err != nil {
			healthy = false
			deps[name] = err.Error()
		} else {
			deps[name] = "ok"
		}
	}

	body := map[string]any{
		"ok":           healthy,
		"service":      s.service,
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	}
	if !healthy {
		body["status"] = "degraded"
	}
	if s.status != nil {
		for k, v := range s.status() {
			body[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode health response")
	}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Str("service", s.service).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
