package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"device-relay/internal/events"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func i64(v int64) *int64 { return &v }

func testRecord() *events.EventRecord {
	return &events.EventRecord{
		ID:              "1700000000000-abcdef12",
		EventType:       "steps",
		Message:         "Steps: 1200",
		DeviceTimestamp: i64(1000),
		ReceivedAt:      1700000000000,
		Metrics:         events.MetricSet{StepCount: i64(1200)},
	}
}

func TestNewSender(t *testing.T) {
	if _, err := NewSender(nil); err == nil {
		t.Error("NewSender(nil) should fail")
	}

	s, err := NewSender([]string{"localhost:9092"})
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	if s.Type() != "kafka" {
		t.Errorf("Type() = %v, want kafka", s.Type())
	}
	w, ok := s.writer.(*kafka.Writer)
	if !ok || w.Topic != "" || w.RequiredAcks != kafka.RequireOne {
		t.Errorf("unexpected writer %+v", s.writer)
	}
}

func TestSender_Send(t *testing.T) {
	w := &fakeWriter{}
	s := &Sender{writer: w}

	if err := s.Send(context.Background(), "device.events", testRecord()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}

	msg := w.msgs[0]
	if msg.Topic != "device.events" || string(msg.Key) != "steps" {
		t.Errorf("Topic/Key = %q/%q", msg.Topic, msg.Key)
	}
	if msg.Time.UnixMilli() != 1700000000000 {
		t.Errorf("Time = %v", msg.Time)
	}

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if !strings.HasPrefix(headers["content-type"], "application/x-protobuf") || headers["event_id"] != "1700000000000-abcdef12" {
		t.Errorf("headers = %v", headers)
	}

	var st structpb.Struct
	if err := proto.Unmarshal(msg.Value, &st); err != nil {
		t.Fatalf("proto.Unmarshal() error = %v", err)
	}
	fields := st.AsMap()
	if fields["eventType"] != "steps" || fields["deviceTimestamp"] != float64(1000) {
		t.Errorf("decoded record = %v", fields)
	}
	metrics, _ := fields["metrics"].(map[string]any)
	if metrics["stepCount"] != float64(1200) || metrics["heartRateBpm"] != nil {
		t.Errorf("decoded metrics = %v", metrics)
	}
	if _, present := metrics["heartRateBpm"]; !present {
		t.Error("absent metric should be encoded as null, not dropped")
	}
}

func TestSender_Send_InvalidTopic(t *testing.T) {
	w := &fakeWriter{}
	s := &Sender{writer: w}

	for _, dest := range []string{"", "device events", "devices.#"} {
		if err := s.Send(context.Background(), dest, testRecord()); err == nil {
			t.Errorf("Send(%q) error = nil, want error", dest)
		}
	}
	if len(w.msgs) != 0 {
		t.Errorf("wrote %d messages for invalid topics", len(w.msgs))
	}
}

func TestSender_Send_WriteError(t *testing.T) {
	s := &Sender{writer: &fakeWriter{err: errors.New("leader not available")}}

	err := s.Send(context.Background(), "device.events", testRecord())
	if err == nil || !strings.Contains(err.Error(), "leader not available") {
		t.Errorf("Send() error = %v", err)
	}
}

func TestSender_Close(t *testing.T) {
	w := &fakeWriter{}
	if err := (&Sender{writer: w}).Close(); err != nil || !w.closed {
		t.Errorf("Close() error = %v, closed = %v", err, w.closed)
	}
}
