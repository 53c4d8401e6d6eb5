// Package router provides HTTP routing configuration for the device-relay API.
// It sets up routes and applies middleware for access logging, panic recovery and CORS.
package router

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"device-relay/internal/handlers"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux      *mux.Router
	handlers *handlers.Handlers
	metrics  http.Handler
}

// NewRouter creates a new router with all routes configured.
// metricsHandler serves GET /metrics when non-nil.
func NewRouter(h *handlers.Handlers, metricsHandler http.Handler) *Router {
	r := &Router{
		mux:      mux.NewRouter(),
		handlers: h,
		metrics:  metricsHandler,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes for the API.
func (r *Router) setupRoutes() {
	r.mux.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	r.mux.NotFoundHandler = http.HandlerFunc(handlers.NotFound)

	// Ingestion
	r.mux.HandleFunc("/api/alert", r.handlers.Ingest).Methods(http.MethodPost)

	// Endpoints registry
	r.mux.HandleFunc("/api/endpoints", r.handlers.RegisterEndpoint).Methods(http.MethodPost)

	// Queries
	r.mux.HandleFunc("/api/recent", r.handlers.Recent).Methods(http.MethodGet)
	r.mux.HandleFunc("/api/last", r.handlers.Last).Methods(http.MethodGet)
	r.mux.HandleFunc("/api/stats", r.handlers.Stats).Methods(http.MethodGet)

	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics).Methods(http.MethodGet)
	}

	// Health check endpoint
	r.mux.HandleFunc("/health", r.handlers.Health).Methods(http.MethodGet)
}

// Handler returns the HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	var h http.Handler = r.mux
	h = gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", handlers.SecretHeader}),
	)(h)
	h = gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError)),
	)(h)
	return gorillahandlers.CustomLoggingHandler(io.Discard, h, logRequest)
}

// logRequest writes one access log line per request through slog.
func logRequest(_ io.Writer, p gorillahandlers.LogFormatterParams) {
	level := slog.LevelInfo
	if p.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	} else if p.StatusCode >= http.StatusBadRequest {
		level = slog.LevelWarn
	}
	slog.Log(p.Request.Context(), level, "HTTP request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"duration", time.Since(p.TimeStamp),
		"remote_addr", p.Request.RemoteAddr,
	)
}

// NewServer creates a new HTTP server for the given handler.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
