// Package http is the operation dispatch layer: it receives named tool
// calls over JSON, normalizes filters, invokes the selected provider, and
// shapes output, including the dashboard prop bundle the read-only
// visualization consumes.
package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"agentledger/internal/ledger"
	applog "agentledger/internal/log"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	http.Server
	provider ledger.Provider
	backend  string
	metrics  *Metrics
}

// NewServer configures routes and middleware, returning a ready-to-run
// server dispatching onto the given provider.
func NewServer(addr string, provider ledger.Provider, backendName string) *Server {
	s := &Server{
		provider: provider,
		backend:  backendName,
		metrics:  NewMetrics(),
	}

	r := chi.NewRouter()
	r.Use(s.withTracing)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/tools/list_expenses", s.instrument(applog.OpListExpenses, s.handleListExpenses))
		r.Post("/tools/compute_balances", s.instrument(applog.OpComputeBalances, s.handleComputeBalances))
		r.Post("/tools/record_expense", s.instrument(applog.OpRecordExpense, s.handleRecordExpense))
		r.Get("/dashboard", s.instrument(applog.OpDashboard, s.handleDashboard))
	})

	s.Server = http.Server{
		Addr:    addr,
		Handler: r,
	}

	return s
}

// withTracing attaches a request id and logs request start/completion with
// a level matched to the status class.
func (s *Server) withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()

		ctx := r.Context()
		slog.InfoContext(ctx, "Request started",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logLevel := slog.LevelInfo
		if rw.statusCode >= 400 && rw.statusCode < 500 {
			logLevel = slog.LevelWarn
		} else if rw.statusCode >= 500 {
			logLevel = slog.LevelError
		}
		slog.Log(ctx, logLevel, "Request completed",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldSuccess, rw.statusCode < 400)
	})
}

// instrument records the per-operation counter and latency around a
// handler.
func (s *Server) instrument(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		outcome := "success"
		if rw.statusCode >= 400 {
			outcome = "error"
		}
		s.metrics.Observe(operation, outcome, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
