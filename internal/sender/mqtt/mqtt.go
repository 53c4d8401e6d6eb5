// Package mqtt republishes event records to MQTT topics.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"device-relay/internal/events"
	"device-relay/internal/sender/validation"
)

const (
	// QoS is the delivery guarantee used for relayed events (at least once).
	QoS = 1

	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// Config holds broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Sender publishes records as JSON to the destination topic.
type Sender struct {
	client paho.Client
}

// NewSender connects to the broker and returns a ready sender.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("broker cannot be empty")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	slog.Info("Connected to MQTT broker", "broker", cfg.Broker, "client_id", cfg.ClientID)
	return newSenderWithClient(client), nil
}

func newSenderWithClient(client paho.Client) *Sender {
	return &Sender{client: client}
}

// Type returns the channel kind this sender handles.
func (s *Sender) Type() string {
	return "mqtt"
}

// Send publishes the record JSON to the destination topic and waits for the
// broker acknowledgement or ctx expiry.
func (s *Sender) Send(ctx context.Context, destination string, record *events.EventRecord) error {
	if !validation.IsValidTopic(destination) {
		return fmt.Errorf("invalid mqtt topic: %q", destination)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal event record: %w", err)
	}

	token := s.client.Publish(destination, QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to topic %s: %w", destination, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", destination, err)
	}

	slog.Info("Published event to MQTT", "topic", destination, "event_id", record.ID)
	return nil
}

// Close disconnects from the broker.
func (s *Sender) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}
