// Package sender fans one event record out to every configured channel destination.
// It uses the strategy pattern to route deliveries to the appropriate channel.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"device-relay/internal/database"
	"device-relay/internal/events"
	"device-relay/internal/metrics"
	"device-relay/internal/sender/strategy"
)

// DefaultTimeout bounds a single delivery when none is configured.
const DefaultTimeout = 10 * time.Second

// ChannelResult is the outcome of one delivery to one destination.
type ChannelResult struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	Err         error  `json:"-"`
}

// Summarize counts delivered and failed results.
func Summarize(results []ChannelResult) (delivered, failed int) {
	for _, r := range results {
		if r.OK {
			delivered++
		} else {
			failed++
		}
	}
	return delivered, failed
}

// EndpointSource lists enabled endpoints from the registry table.
type EndpointSource interface {
	EnabledEndpoints(ctx context.Context, types []string) ([]database.Endpoint, error)
}

// Sender coordinates delivery across channels.
type Sender struct {
	registry  *strategy.Registry
	static    map[string][]string
	endpoints EndpointSource
	timeout   time.Duration
	metrics   metrics.Recorder
}

// Option configures a Sender.
type Option func(*Sender)

// WithEndpointSource merges destinations from the endpoints registry on every dispatch.
func WithEndpointSource(src EndpointSource) Option {
	return func(s *Sender) { s.endpoints = src }
}

// WithTimeout sets the per-delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Sender) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewSender creates a sender over the given registry. static maps channel type
// to destinations, usually from configuration.
func NewSender(registry *strategy.Registry, static map[string][]string, opts ...Option) *Sender {
	s := &Sender{
		registry: registry,
		static:   static,
		timeout:  DefaultTimeout,
		metrics:  metrics.NewNoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channels returns the registered channel types.
func (s *Sender) Channels() []string {
	return s.registry.List()
}

// Dispatch delivers the record to every destination of every registered channel
// concurrently and waits for all outcomes. Failures are captured in the results
// and never returned; zero destinations yields an empty result.
func (s *Sender) Dispatch(ctx context.Context, record *events.EventRecord) []ChannelResult {
	targets := s.destinations(ctx)
	if len(targets) == 0 {
		slog.Debug("No channel destinations configured", "event_id", record.ID)
		return nil
	}

	results := make([]ChannelResult, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt target) {
			defer wg.Done()
			results[i] = s.deliver(ctx, tgt, record)
		}(i, tgt)
	}
	wg.Wait()

	delivered, failed := Summarize(results)
	if failed > 0 {
		slog.Warn("Some deliveries failed",
			"event_id", record.ID,
			"delivered", delivered,
			"failed", failed,
		)
	} else {
		slog.Info("Event dispatched",
			"event_id", record.ID,
			"delivered", delivered,
		)
	}

	return results
}

type target struct {
	sender      strategy.NotificationSender
	destination string
}

// deliver runs one send under its own timeout. A send that ignores its context
// is abandoned once the timeout fires.
func (s *Sender) deliver(ctx context.Context, tgt target, record *events.EventRecord) ChannelResult {
	channel := tgt.sender.Type()
	result := ChannelResult{Channel: channel, Destination: tgt.destination}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%s sender panicked: %v", channel, r)
			}
		}()
		done <- tgt.sender.Send(callCtx, tgt.destination, record)
	}()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = fmt.Errorf("%s delivery to %s timed out: %w", channel, tgt.destination, callCtx.Err())
	}

	if err != nil {
		result.Err = err
		result.Error = err.Error()
		slog.Error("Channel delivery failed",
			"channel", channel,
			"destination", tgt.destination,
			"event_id", record.ID,
			"error", err,
		)
	} else {
		result.OK = true
	}
	s.metrics.RecordDelivery(channel, result.OK)
	return result
}

// destinations merges static and registry destinations per registered channel,
// collapsing duplicates. The order is stable: channel name, then first appearance.
func (s *Sender) destinations(ctx context.Context) []target {
	types := s.registry.List()
	byType := make(map[string][]string, len(types))
	seen := make(map[string]map[string]bool, len(types))

	add := func(channel, value string) {
		if _, ok := s.registry.Get(channel); !ok {
			slog.Warn("Unknown channel type, skipping", "channel", channel, "destination", value)
			return
		}
		if seen[channel] == nil {
			seen[channel] = make(map[string]bool)
		}
		if value == "" || seen[channel][value] {
			return
		}
		seen[channel][value] = true
		byType[channel] = append(byType[channel], value)
	}

	for channel, values := range s.static {
		for _, v := range values {
			add(channel, v)
		}
	}

	if s.endpoints != nil && len(types) > 0 {
		eps, err := s.endpoints.EnabledEndpoints(ctx, types)
		if err != nil {
			slog.Error("Failed to load endpoints registry, using configured destinations only", "error", err)
		}
		for _, ep := range eps {
			if ep.Enabled {
				add(ep.Type, ep.Value)
			}
		}
	}

	channels := make([]string, 0, len(byType))
	for channel := range byType {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	var targets []target
	for _, channel := range channels {
		sndr, _ := s.registry.Get(channel)
		for _, v := range byType[channel] {
			targets = append(targets, target{sender: sndr, destination: v})
		}
	}
	return targets
}
