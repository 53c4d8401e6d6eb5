// Package metrics provides metrics recording for the relay.
// It uses the null object pattern to avoid nil checks throughout the codebase.
package metrics

import "time"

// Rejection reasons passed to RecordRejected.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonMalformed    = "malformed"
)

// Recorder defines the interface for recording relay metrics.
// Implementations can record to various backends (Redis, Prometheus, etc.)
type Recorder interface {
	// RecordReceived increments the count of inbound events.
	RecordReceived()

	// RecordRejected counts an event refused before processing.
	RecordRejected(reason string)

	// RecordPersisted counts a history append attempt.
	RecordPersisted(ok bool)

	// RecordDelivery counts one channel delivery attempt.
	RecordDelivery(channel string, ok bool)

	// RecordProcessed records a fully handled event with its latency.
	RecordProcessed(latency time.Duration)
}

// NoOp is a no-op implementation of Recorder that discards all metrics.
// Use this when metrics collection is not configured.
type NoOp struct{}

// NewNoOp creates a new no-op metrics recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) RecordReceived()                 {}
func (n *NoOp) RecordRejected(_ string)         {}
func (n *NoOp) RecordPersisted(_ bool)          {}
func (n *NoOp) RecordDelivery(_ string, _ bool) {}
func (n *NoOp) RecordProcessed(_ time.Duration) {}

// Ensure NoOp implements Recorder
var _ Recorder = (*NoOp)(nil)

// Multi fans every call out to several recorders.
type Multi []Recorder

func (m Multi) RecordReceived() {
	for _, r := range m {
		r.RecordReceived()
	}
}

func (m Multi) RecordRejected(reason string) {
	for _, r := range m {
		r.RecordRejected(reason)
	}
}

func (m Multi) RecordPersisted(ok bool) {
	for _, r := range m {
		r.RecordPersisted(ok)
	}
}

func (m Multi) RecordDelivery(channel string, ok bool) {
	for _, r := range m {
		r.RecordDelivery(channel, ok)
	}
}

func (m Multi) RecordProcessed(latency time.Duration) {
	for _, r := range m {
		r.RecordProcessed(latency)
	}
}

var _ Recorder = Multi(nil)
