// Package kafka relays event records to Kafka topics as protobuf Struct messages.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"device-relay/internal/events"
	"device-relay/internal/sender/validation"
)

const (
	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second

	contentType = "application/x-protobuf; messageType=google.protobuf.Struct"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender publishes records to the topic named by each destination.
type Sender struct {
	writer messageWriter
}

// NewSender creates a sender writing to the given brokers. The writer has no
// fixed topic; each message carries its own.
func NewSender(brokers []string) (*Sender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}

	slog.Info("Initializing Kafka relay", "brokers", brokers)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}
	return &Sender{writer: writer}, nil
}

// Type returns the channel kind this sender handles.
func (s *Sender) Type() string {
	return "kafka"
}

// Send publishes the record to the destination topic, keyed by event type.
func (s *Sender) Send(ctx context.Context, destination string, record *events.EventRecord) error {
	if !validation.IsValidTopic(destination) {
		return fmt.Errorf("invalid kafka topic: %q", destination)
	}

	value, err := Encode(record)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: destination,
		Key:   []byte(record.EventType),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(contentType)},
			{Key: "event_id", Value: []byte(record.ID)},
			{Key: "event_type", Value: []byte(record.EventType)},
		},
		Time: record.ReceivedTime(),
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka topic %s: %w", destination, err)
	}

	slog.Info("Published event to Kafka",
		"topic", destination,
		"event_id", record.ID,
	)
	return nil
}

// Close gracefully closes the Kafka writer.
func (s *Sender) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// Encode converts the record's JSON form into a binary google.protobuf.Struct.
// Absent metrics become null values.
func Encode(record *events.EventRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event record: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode event record: %w", err)
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build protobuf struct: %w", err)
	}

	value, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal protobuf struct: %w", err)
	}
	return value, nil
}
