package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "metrics:"
	// TTL is how long metrics stay in Redis if not refreshed.
	TTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is a point-in-time view of the relay's counters.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"

	// Counters (monotonically increasing since start)
	EventsReceived  uint64 `json:"events_received"`
	EventsRejected  uint64 `json:"events_rejected"`
	EventsProcessed uint64 `json:"events_processed"`
	EventsPersisted uint64 `json:"events_persisted"`
	StoreErrors     uint64 `json:"store_errors"`

	// Rates (per report interval)
	EventsPerSecond float64 `json:"events_per_second"`

	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	// Per-channel and per-reason counters, e.g. "delivered_email", "rejected_malformed"
	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector collects metrics in memory and periodically reports them to Redis.
type Collector struct {
	serviceName    string
	redis          redis.Cmdable
	startedAt      time.Time
	reportInterval time.Duration

	eventsReceived  atomic.Uint64
	eventsRejected  atomic.Uint64
	eventsProcessed atomic.Uint64
	eventsPersisted atomic.Uint64
	storeErrors     atomic.Uint64

	// For rate calculation
	rateMu             sync.Mutex
	lastReportTime     time.Time
	lastProcessedCount uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector. redisClient may be nil,
// in which case metrics are only available through Snapshot.
func NewCollector(serviceName string, redisClient redis.Cmdable) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	if interval > 0 {
		c.reportInterval = interval
	}
}

// Start begins the periodic metrics reporting to Redis.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.writeMetrics(context.Background()) // Final write
				return
			case <-c.stopCh:
				c.writeMetrics(context.Background()) // Final write
				return
			case <-ticker.C:
				c.writeMetrics(ctx)
			}
		}
	}()
}

// Stop stops the metrics reporting. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived increments the events received counter.
func (c *Collector) RecordReceived() {
	c.eventsReceived.Add(1)
}

// RecordRejected increments the rejected counter and its per-reason counter.
func (c *Collector) RecordRejected(reason string) {
	c.eventsRejected.Add(1)
	c.IncrementCustom("rejected_" + reason)
}

// RecordPersisted counts a history append.
func (c *Collector) RecordPersisted(ok bool) {
	if ok {
		c.eventsPersisted.Add(1)
		return
	}
	c.storeErrors.Add(1)
}

// RecordDelivery counts a delivery under delivered_<channel> or failed_<channel>.
func (c *Collector) RecordDelivery(channel string, ok bool) {
	if ok {
		c.IncrementCustom("delivered_" + channel)
		return
	}
	c.IncrementCustom("failed_" + channel)
}

// RecordProcessed increments the events processed counter with latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.eventsProcessed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(1)
}

// Snapshot returns current metrics without writing to Redis.
func (c *Collector) Snapshot() *ServiceMetrics {
	now := time.Now().UTC()
	processed := c.eventsProcessed.Load()

	c.rateMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(processed-c.lastProcessedCount) / elapsed
	}
	c.rateMu.Unlock()

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	customCounters := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		customCounters[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            now,
		Status:                 "healthy",
		EventsReceived:         c.eventsReceived.Load(),
		EventsRejected:         c.eventsRejected.Load(),
		EventsProcessed:        processed,
		EventsPersisted:        c.eventsPersisted.Load(),
		StoreErrors:            c.storeErrors.Load(),
		EventsPerSecond:        rate,
		AvgProcessingLatencyNs: avgLatencyNs,
		CustomCounters:         customCounters,
	}
}

// writeMetrics writes current metrics to Redis.
func (c *Collector) writeMetrics(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.Snapshot()

	c.rateMu.Lock()
	c.lastReportTime = snapshot.LastUpdated
	c.lastProcessedCount = snapshot.EventsProcessed
	c.rateMu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := KeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, TTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}

var _ Recorder = (*Collector)(nil)

// Reader reads service metrics from Redis.
type Reader struct {
	redis redis.Cmdable
}

// NewReader creates a new metrics reader.
func NewReader(redisClient redis.Cmdable) *Reader {
	return &Reader{redis: redisClient}
}

// ServiceMetrics retrieves the last report for a service. Reports older than
// TTL are marked unhealthy.
func (r *Reader) ServiceMetrics(ctx context.Context, serviceName string) (*ServiceMetrics, error) {
	key := KeyPrefix + serviceName
	data, err := r.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no metrics found for service: %s", serviceName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}

	var m ServiceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}

	if time.Since(m.LastUpdated) > TTL {
		m.Status = "unhealthy"
	}

	return &m, nil
}
