package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"device-relay/internal/database"
	"device-relay/internal/events"
	"device-relay/internal/metrics"
	"device-relay/internal/sender"
)

// mockStore implements history.Store for testing.
type mockStore struct {
	mu       sync.Mutex
	Appended []*events.EventRecord
	AppendFn func(ctx context.Context, record *events.EventRecord) error
	RecentFn func(ctx context.Context, limit int) ([]events.EventRecord, error)
	LatestFn func(ctx context.Context) (*events.EventRecord, error)
}

func (m *mockStore) Append(ctx context.Context, record *events.EventRecord) error {
	m.mu.Lock()
	m.Appended = append(m.Appended, record)
	m.mu.Unlock()
	if m.AppendFn != nil {
		return m.AppendFn(ctx, record)
	}
	return nil
}

func (m *mockStore) Recent(ctx context.Context, limit int) ([]events.EventRecord, error) {
	if m.RecentFn != nil {
		return m.RecentFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockStore) Latest(ctx context.Context) (*events.EventRecord, error) {
	if m.LatestFn != nil {
		return m.LatestFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) appendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Appended)
}

// mockDispatcher implements Dispatcher for testing.
type mockDispatcher struct {
	mu         sync.Mutex
	Dispatched []*events.EventRecord
	Contexts   []context.Context
	Results    []sender.ChannelResult
}

func (m *mockDispatcher) Dispatch(ctx context.Context, record *events.EventRecord) []sender.ChannelResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dispatched = append(m.Dispatched, record)
	m.Contexts = append(m.Contexts, ctx)
	return m.Results
}

func (m *mockDispatcher) dispatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Dispatched)
}

// mockMetrics implements metrics.Recorder for testing.
type mockMetrics struct {
	mu             sync.Mutex
	ReceivedCount  int
	Rejected       []string
	Persisted      []bool
	ProcessedCount int
}

var _ metrics.Recorder = (*mockMetrics)(nil)

func (m *mockMetrics) RecordReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReceivedCount++
}

func (m *mockMetrics) RecordRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected = append(m.Rejected, reason)
}

func (m *mockMetrics) RecordPersisted(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Persisted = append(m.Persisted, ok)
}

func (m *mockMetrics) RecordDelivery(_ string, _ bool) {}

func (m *mockMetrics) RecordProcessed(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProcessedCount++
}

// mockStats implements StatsSource for testing.
type mockStats struct {
	snapshot *metrics.ServiceMetrics
}

func (m *mockStats) Snapshot() *metrics.ServiceMetrics { return m.snapshot }

// mockStatsReader implements StatsReader for testing.
type mockStatsReader struct {
	reports map[string]*metrics.ServiceMetrics
}

func (m *mockStatsReader) ServiceMetrics(ctx context.Context, name string) (*metrics.ServiceMetrics, error) {
	if r, ok := m.reports[name]; ok {
		return r, nil
	}
	return nil, errors.New("no metrics found for service: " + name)
}

// mockEndpointRegistry implements EndpointRegistry for testing.
type mockEndpointRegistry struct {
	Upserted []database.Endpoint
	Err      error
}

func (m *mockEndpointRegistry) UpsertEndpoint(ctx context.Context, ep database.Endpoint) error {
	if m.Err != nil {
		return m.Err
	}
	m.Upserted = append(m.Upserted, ep)
	return nil
}
