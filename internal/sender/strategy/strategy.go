// Package strategy defines the interface for notification channel strategies.
package strategy

import (
	"context"
	"sort"

	"device-relay/internal/events"
)

// NotificationSender is the interface that all channel strategies must implement.
type NotificationSender interface {
	// Send delivers the record to one destination.
	// The destination format depends on the channel:
	//   - email, sms: address(es) as comma-separated string
	//   - slack, webhook: URL
	//   - telegram: chat ID
	//   - kafka, mqtt: topic
	Send(ctx context.Context, destination string, record *events.EventRecord) error

	// Type returns the channel kind this sender handles (e.g., "email", "slack").
	Type() string
}

// Registry manages channel strategies.
type Registry struct {
	senders map[string]NotificationSender
}

// NewRegistry creates a new sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]NotificationSender),
	}
}

// Register registers a sender strategy, replacing any sender of the same type.
func (r *Registry) Register(sender NotificationSender) {
	r.senders[sender.Type()] = sender
}

// Get retrieves a sender strategy by type.
func (r *Registry) Get(senderType string) (NotificationSender, bool) {
	sender, ok := r.senders[senderType]
	return sender, ok
}

// List returns all registered sender types in sorted order.
func (r *Registry) List() []string {
	types := make([]string, 0, len(r.senders))
	for t := range r.senders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
