// Package events defines the canonical device event record and the raw payload it is built from.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultEventType is used when the device does not report an event name.
const DefaultEventType = "unknown"

// MetricSet holds the vitals extracted from one event.
// A nil field means the metric was not observed; it is never the same as zero.
type MetricSet struct {
	TemperatureC    *float64 `json:"temperatureC"`
	TemperatureF    *float64 `json:"temperatureF"`
	HumidityPercent *float64 `json:"humidityPercent"`
	StepCount       *int64   `json:"stepCount"`
	HeartRateBpm    *float64 `json:"heartRateBpm"`
}

// IsEmpty reports whether no metric was resolved.
func (m MetricSet) IsEmpty() bool {
	return m.TemperatureC == nil && m.TemperatureF == nil && m.HumidityPercent == nil &&
		m.StepCount == nil && m.HeartRateBpm == nil
}

// EventRecord is one ingested device event as persisted and dispatched.
// Records are built once per request and never modified afterwards.
type EventRecord struct {
	ID              string    `json:"id"`
	EventType       string    `json:"eventType"`
	Message         string    `json:"message"`
	DeviceTimestamp *int64    `json:"deviceTimestamp"`
	ReceivedAt      int64     `json:"receivedAt"` // epoch milliseconds, authoritative ordering key
	Metrics         MetricSet `json:"metrics"`
}

// NewEventRecord builds a record from a decoded payload and its extracted metrics.
// receivedAt is the server receipt time.
func NewEventRecord(p Payload, metrics MetricSet, receivedAt time.Time) *EventRecord {
	eventType, ok := p.String("event")
	if !ok || eventType == "" {
		eventType = DefaultEventType
	}
	message, _ := p.String("msg")

	var deviceTS *int64
	if ts, ok := p.Int("ts"); ok {
		deviceTS = &ts
	}

	ms := receivedAt.UnixMilli()
	return &EventRecord{
		ID:              newRecordID(ms),
		EventType:       eventType,
		Message:         message,
		DeviceTimestamp: deviceTS,
		ReceivedAt:      ms,
		Metrics:         metrics,
	}
}

// ReceivedTime returns ReceivedAt as a UTC time.
func (r *EventRecord) ReceivedTime() time.Time {
	return time.UnixMilli(r.ReceivedAt).UTC()
}

// newRecordID derives an identifier from the receipt time plus a random suffix.
func newRecordID(receivedAtMs int64) string {
	suffix := uuid.NewString()
	return fmt.Sprintf("%d-%s", receivedAtMs, suffix[:8])
}
