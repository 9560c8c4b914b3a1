package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-mfdc/internal/domain"
)

// memoryStore implements SessionRegistry, ResponseStore and OrderStore.
type memoryStore struct {
	mu        sync.Mutex
	sessions  map[string]Session
	responses map[string][]domain.StoredResponse
	orders    map[string][]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions:  make(map[string]Session),
		responses: make(map[string][]domain.StoredResponse),
		orders:    make(map[string][]string),
	}
}

func (m *memoryStore) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.Code]; ok {
		return fmt.Errorf("create %s: %w", s.Code, domain.ErrSessionExists)
	}
	m.sessions[s.Code] = s
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, code string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[code]
	if !ok {
		return Session{}, fmt.Errorf("get %s: %w", code, domain.ErrSessionNotFound)
	}
	return s, nil
}

func (m *memoryStore) SaveResponse(_ context.Context, r domain.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[r.SessionCode] = append(m.responses[r.SessionCode], r)
	return nil
}

func (m *memoryStore) ListResponses(_ context.Context, code string) ([]domain.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoredResponse, len(m.responses[code]))
	copy(out, m.responses[code])
	return out, nil
}

func (m *memoryStore) GetOrder(_ context.Context, code string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.orders[code]
	return append([]string(nil), ids...), ok, nil
}

func (m *memoryStore) PutOrder(_ context.Context, code string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[code]; !ok {
		m.orders[code] = append([]string(nil), ids...)
	}
	return nil
}

// mockMetricsCollector implements MetricsCollector interface
type mockMetricsCollector struct {
	latencies  []time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// newMockMetricsCollector creates a new mock metrics collector for testing.
func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		latencies:  []time.Duration{},
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.latencies = append(m.latencies, duration)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.gauges[metric] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.histograms[metric] = append(m.histograms[metric], value)
}

// Test that interfaces are properly defined and can be implemented
func TestInterfaces_Implementation(t *testing.T) {
	var _ SessionRegistry = (*memoryStore)(nil)
	var _ ResponseStore = (*memoryStore)(nil)
	var _ OrderStore = (*memoryStore)(nil)
	var _ MetricsCollector = (*mockMetricsCollector)(nil)
}

func TestSessionRegistry_Operations(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	require.NoError(t, store.CreateSession(ctx, Session{Code: "TEAM01", Title: "Offsite"}))

	err := store.CreateSession(ctx, Session{Code: "TEAM01"})
	assert.ErrorIs(t, err, domain.ErrSessionExists, "Duplicate codes should be rejected")

	got, err := store.GetSession(ctx, "TEAM01")
	require.NoError(t, err)
	assert.Equal(t, "Offsite", got.Title)

	_, err = store.GetSession(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestResponseStore_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	require.NoError(t, store.SaveResponse(ctx, domain.StoredResponse{SessionCode: "TEAM01", LeadershipType: "ISPN"}))

	snap, err := store.ListResponses(ctx, "TEAM01")
	require.NoError(t, err)
	require.Len(t, snap, 1)

	require.NoError(t, store.SaveResponse(ctx, domain.StoredResponse{SessionCode: "TEAM01", LeadershipType: "ECRD"}))
	assert.Len(t, snap, 1, "A snapshot must not observe later submissions")

	empty, err := store.ListResponses(ctx, "OTHER")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOrderStore_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	_, ok, err := store.GetOrder(ctx, "TEAM01")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutOrder(ctx, "TEAM01", []string{"S02", "S01"}))
	require.NoError(t, store.PutOrder(ctx, "TEAM01", []string{"S01", "S02"}))

	ids, ok, err := store.GetOrder(ctx, "TEAM01")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"S02", "S01"}, ids)
}

func TestMetricsCollector_Recording(t *testing.T) {
	metrics := newMockMetricsCollector()
	labels := map[string]string{"unit": "score"}

	metrics.RecordLatency("score", 100*time.Millisecond, labels)
	assert.Len(t, metrics.latencies, 1, "RecordLatency() should record one duration")
	assert.Equal(t, 100*time.Millisecond, metrics.latencies[0], "RecordLatency() duration mismatch")

	metrics.RecordCounter("responses", 1, labels)
	metrics.RecordCounter("responses", 2, labels)
	assert.Equal(t, float64(3), metrics.counters["responses"], "RecordCounter() sum mismatch")

	metrics.RecordGauge("session_responses", 10, labels)
	metrics.RecordGauge("session_responses", 5, labels)
	assert.Equal(t, float64(5), metrics.gauges["session_responses"], "RecordGauge() value mismatch")

	metrics.RecordHistogram("axis_score", 62.5, labels)
	metrics.RecordHistogram("axis_score", 37.5, labels)
	assert.Len(t, metrics.histograms["axis_score"], 2, "RecordHistogram() should record two values")
}
