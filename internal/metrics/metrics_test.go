package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

func TestNoOp(t *testing.T) {
	var r Recorder = NewNoOp()
	r.RecordReceived()
	r.RecordRejected(ReasonMalformed)
	r.RecordPersisted(true)
	r.RecordDelivery("email", false)
	r.RecordProcessed(time.Millisecond)
}

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector("device-relay", nil)

	c.RecordReceived()
	c.RecordReceived()
	c.RecordReceived()
	c.RecordRejected(ReasonUnauthorized)
	c.RecordPersisted(true)
	c.RecordPersisted(false)
	c.RecordDelivery("email", true)
	c.RecordDelivery("email", true)
	c.RecordDelivery("slack", false)
	c.RecordProcessed(10 * time.Millisecond)
	c.RecordProcessed(30 * time.Millisecond)

	s := c.Snapshot()

	if s.ServiceName != "device-relay" {
		t.Errorf("ServiceName = %q", s.ServiceName)
	}
	if s.EventsReceived != 3 {
		t.Errorf("EventsReceived = %d, want 3", s.EventsReceived)
	}
	if s.EventsRejected != 1 {
		t.Errorf("EventsRejected = %d, want 1", s.EventsRejected)
	}
	if s.EventsPersisted != 1 || s.StoreErrors != 1 {
		t.Errorf("EventsPersisted = %d, StoreErrors = %d, want 1, 1", s.EventsPersisted, s.StoreErrors)
	}
	if s.EventsProcessed != 2 {
		t.Errorf("EventsProcessed = %d, want 2", s.EventsProcessed)
	}
	if s.AvgProcessingLatencyNs != float64(20*time.Millisecond) {
		t.Errorf("AvgProcessingLatencyNs = %v, want %v", s.AvgProcessingLatencyNs, float64(20*time.Millisecond))
	}

	wantCustom := map[string]uint64{
		"rejected_unauthorized": 1,
		"delivered_email":       2,
		"failed_slack":          1,
	}
	for name, want := range wantCustom {
		if got := s.CustomCounters[name]; got != want {
			t.Errorf("CustomCounters[%q] = %d, want %d", name, got, want)
		}
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector("device-relay", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordDelivery("webhook", true)
		}()
	}
	wg.Wait()

	if got := c.Snapshot().CustomCounters["delivered_webhook"]; got != 50 {
		t.Errorf("delivered_webhook = %d, want 50", got)
	}
}

func TestCollector_ReportsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewCollector("device-relay", client)
	c.SetReportInterval(time.Hour)
	c.RecordReceived()
	c.RecordProcessed(time.Millisecond)

	c.Start(context.Background())
	c.Stop()
	c.Stop()

	if !mr.Exists(KeyPrefix + "device-relay") {
		t.Fatal("expected metrics key to be written on stop")
	}
	if ttl := mr.TTL(KeyPrefix + "device-relay"); ttl != TTL {
		t.Errorf("TTL = %v, want %v", ttl, TTL)
	}

	got, err := NewReader(client).ServiceMetrics(context.Background(), "device-relay")
	if err != nil {
		t.Fatalf("ServiceMetrics() error = %v", err)
	}
	if got.EventsReceived != 1 || got.EventsProcessed != 1 {
		t.Errorf("ServiceMetrics() = %+v", got)
	}
	if got.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", got.Status)
	}
}

func TestReader_Missing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := NewReader(client).ServiceMetrics(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "no metrics found") {
		t.Errorf("ServiceMetrics() error = %v, want not found", err)
	}
}

func TestReader_Stale(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	stale := `{"service_name":"device-relay","last_updated":"2020-01-01T00:00:00Z","status":"healthy"}`
	if err := mr.Set(KeyPrefix+"device-relay", stale); err != nil {
		t.Fatal(err)
	}

	got, err := NewReader(client).ServiceMetrics(context.Background(), "device-relay")
	if err != nil {
		t.Fatalf("ServiceMetrics() error = %v", err)
	}
	if got.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", got.Status)
	}
}

func TestPrometheus(t *testing.T) {
	p := NewPrometheus()

	p.RecordReceived()
	p.RecordReceived()
	p.RecordRejected(ReasonMalformed)
	p.RecordPersisted(false)
	p.RecordDelivery("telegram", true)
	p.RecordDelivery("telegram", false)
	p.RecordDelivery("telegram", true)
	p.RecordProcessed(5 * time.Millisecond)

	if got := testutil.ToFloat64(p.received); got != 2 {
		t.Errorf("received = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.rejected.WithLabelValues(ReasonMalformed)); got != 1 {
		t.Errorf("rejected{malformed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.persisted.WithLabelValues("false")); got != 1 {
		t.Errorf("persisted{false} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.deliveries.WithLabelValues("telegram", "true")); got != 2 {
		t.Errorf("deliveries{telegram,true} = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "device_relay_deliveries_total") {
		t.Errorf("exposition missing deliveries counter:\n%s", body)
	}
}

func TestMulti(t *testing.T) {
	a := NewCollector("a", nil)
	b := NewCollector("b", nil)
	m := Multi{a, b}

	m.RecordReceived()
	m.RecordRejected(ReasonUnauthorized)
	m.RecordPersisted(true)
	m.RecordDelivery("mqtt", true)
	m.RecordProcessed(time.Millisecond)

	for _, c := range []*Collector{a, b} {
		s := c.Snapshot()
		if s.EventsReceived != 1 || s.EventsRejected != 1 || s.EventsPersisted != 1 || s.EventsProcessed != 1 {
			t.Errorf("%s snapshot = %+v", s.ServiceName, s)
		}
		if s.CustomCounters["delivered_mqtt"] != 1 {
			t.Errorf("%s delivered_mqtt = %d", s.ServiceName, s.CustomCounters["delivered_mqtt"])
		}
	}
}
