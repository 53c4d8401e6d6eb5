// Package handlers provides HTTP handlers for the device-relay API.
package handlers

import (
	"context"
	"time"

	"device-relay/internal/events"
	"device-relay/internal/history"
	"device-relay/internal/metrics"
	"device-relay/internal/sender"
)

const (
	// SecretHeader carries the shared secret every ingestion request must present.
	SecretHeader = "X-Webhook-Secret"

	// DefaultProcessTimeout bounds persistence plus dispatch for one event.
	DefaultProcessTimeout = 30 * time.Second
)

// Dispatcher fans a record out to the configured notification channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, record *events.EventRecord) []sender.ChannelResult
}

// StatsSource exposes a point-in-time metrics snapshot.
type StatsSource interface {
	Snapshot() *metrics.ServiceMetrics
}

// StatsReader reads the last metrics report another relay instance wrote to Redis.
type StatsReader interface {
	ServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
}

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	secret         string
	store          history.Store
	dispatcher     Dispatcher
	metrics        metrics.Recorder
	stats          StatsSource
	statsReader    StatsReader
	endpoints      EndpointRegistry
	processTimeout time.Duration
	now            func() time.Time
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetrics sets a custom metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithStats enables GET /api/stats.
func WithStats(s StatsSource) Option {
	return func(h *Handlers) {
		h.stats = s
	}
}

// WithStatsReader enables GET /api/stats?service=<name>.
func WithStatsReader(r StatsReader) Option {
	return func(h *Handlers) {
		h.statsReader = r
	}
}

// WithEndpointRegistry enables POST /api/endpoints.
func WithEndpointRegistry(reg EndpointRegistry) Option {
	return func(h *Handlers) {
		h.endpoints = reg
	}
}

// WithProcessTimeout bounds the detached persist and dispatch work of one request.
func WithProcessTimeout(d time.Duration) Option {
	return func(h *Handlers) {
		if d > 0 {
			h.processTimeout = d
		}
	}
}

// NewHandlers creates a new handlers instance.
// An empty secret rejects every ingestion request.
func NewHandlers(secret string, store history.Store, dispatcher Dispatcher, opts ...Option) *Handlers {
	h := &Handlers{
		secret:         secret,
		store:          store,
		dispatcher:     dispatcher,
		metrics:        metrics.NewNoOp(), // Default to no-op, never nil
		processTimeout: DefaultProcessTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}
