// Package api serves the engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/auth"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/engine"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/health"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/httputil"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/metrics"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/stream"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. ready backs /readyz.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, eng *engine.Engine, streamHandler *stream.Handler, ready func() bool) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(logger, authCfg, eng, streamHandler, ready),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Risk evaluations against a full catalog take a while; streams clear
			// their own deadline.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(logger *slog.Logger, authCfg auth.Config, eng *engine.Engine, streamHandler *stream.Handler, ready func() bool) http.Handler {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/engine", engineHandler(logger, eng))
	mux.HandleFunc("GET /api/v1/catalog", catalogHandler(eng))
	mux.HandleFunc("POST /api/v1/catalog/refresh", refreshHandler(logger, eng))
	mux.HandleFunc("GET /api/v1/propagate", propagateHandler(logger, eng))
	mux.HandleFunc("POST /api/v1/risk", riskHandler(logger, eng))
	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", streamHandler.HandlePositions)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working behind the logger.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Join the caller's trace, if any, so engine spans hang off it.
			r = r.WithContext(otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header)))

			requestID := httputil.RequestID(r)
			w.Header().Set(httputil.RequestIDHeader, requestID)

			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, false),
			)
		})
	}
}
