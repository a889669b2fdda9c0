package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// durationBuckets are histogram upper bounds in seconds.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// MemoryTelemetry keeps counters and duration histograms in memory and
// serves them through Snapshot.
type MemoryTelemetry struct {
	mu          sync.RWMutex
	started     time.Time
	operations  map[string]*operationStats
	errors      map[string]int64
	connections map[string]int64
	open        int
}

type operationStats struct {
	success    int64
	failure    int64
	statements int64
	total      time.Duration
	buckets    []int64
}

// NewMemoryTelemetry creates an in-memory telemetry adapter.
func NewMemoryTelemetry() *MemoryTelemetry {
	return &MemoryTelemetry{
		started:     time.Now(),
		operations:  make(map[string]*operationStats),
		errors:      make(map[string]int64),
		connections: make(map[string]int64),
	}
}

// RecordOperation records one operation.
func (m *MemoryTelemetry) RecordOperation(ctx context.Context, info OperationInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.operations[info.Operation]
	if !ok {
		stats = &operationStats{buckets: make([]int64, len(durationBuckets)+1)}
		m.operations[info.Operation] = stats
	}
	if info.Success {
		stats.success++
	} else {
		stats.failure++
	}
	stats.statements += int64(info.Statements)
	stats.total += info.Duration
	stats.buckets[sort.SearchFloat64s(durationBuckets, info.Duration.Seconds())]++
}

// RecordError counts errors by operation and kind.
func (m *MemoryTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors[info.Operation+"/"+info.Kind]++
}

// RecordConnection counts pool events.
func (m *MemoryTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := info.Event
	if !info.Success {
		key += "_failed"
	}
	m.connections[key]++
	m.open = info.OpenConnections
}

// Flush is a no-op; data is recorded synchronously.
func (m *MemoryTelemetry) Flush(ctx context.Context) error {
	return nil
}

// Close closes the telemetry adapter.
func (m *MemoryTelemetry) Close(ctx context.Context) error {
	return nil
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	UptimeSeconds   float64                      `json:"uptime_seconds"`
	Operations      map[string]OperationSnapshot `json:"operations"`
	Errors          map[string]int64             `json:"errors"`
	Connections     map[string]int64             `json:"connections"`
	OpenConnections int                          `json:"open_connections"`
}

// OperationSnapshot holds the metrics of one operation type.
type OperationSnapshot struct {
	Success       int64            `json:"success"`
	Failure       int64            `json:"failure"`
	Statements    int64            `json:"statements"`
	TotalSeconds  float64          `json:"total_seconds"`
	DurationHisto map[string]int64 `json:"duration_histogram"`
}

// Snapshot copies the current metrics.
func (m *MemoryTelemetry) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		UptimeSeconds:   time.Since(m.started).Seconds(),
		Operations:      make(map[string]OperationSnapshot, len(m.operations)),
		Errors:          make(map[string]int64, len(m.errors)),
		Connections:     make(map[string]int64, len(m.connections)),
		OpenConnections: m.open,
	}
	for name, stats := range m.operations {
		s.Operations[name] = OperationSnapshot{
			Success:       stats.success,
			Failure:       stats.failure,
			Statements:    stats.statements,
			TotalSeconds:  stats.total.Seconds(),
			DurationHisto: histogram(stats.buckets),
		}
	}
	for k, v := range m.errors {
		s.Errors[k] = v
	}
	for k, v := range m.connections {
		s.Connections[k] = v
	}
	return s
}

// histogram labels cumulative bucket counts Prometheus-style ("le").
func histogram(counts []int64) map[string]int64 {
	out := make(map[string]int64, len(counts))
	var cum int64
	for i, c := range counts {
		cum += c
		label := "+Inf"
		if i < len(durationBuckets) {
			label = formatBound(durationBuckets[i])
		}
		out[label] = cum
	}
	return out
}

var _ Telemetry = (*MemoryTelemetry)(nil)
