package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTelemetry(t *testing.T) {
	tel, err := NewTelemetry(nil)
	require.NoError(t, err)
	assert.IsType(t, &NoopTelemetry{}, tel)

	tel, err = NewTelemetry(&Config{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryTelemetry{}, tel)

	_, err = NewTelemetry(&Config{Type: "statsd"})
	assert.Error(t, err)
}

func TestNoopTelemetry(t *testing.T) {
	ctx := context.Background()
	tel := NewNoopTelemetry()

	tel.RecordOperation(ctx, OperationInfo{Operation: "query", Success: true})
	tel.RecordError(ctx, ErrorInfo{Operation: "mutate", Kind: "Timeout"})
	tel.RecordConnection(ctx, ConnectionInfo{Event: "connect", Success: true})
	assert.NoError(t, tel.Flush(ctx))
	assert.NoError(t, tel.Close(ctx))
}

func TestMemoryTelemetry(t *testing.T) {
	ctx := context.Background()
	tel := NewMemoryTelemetry()

	tel.RecordOperation(ctx, OperationInfo{Operation: "query", Statements: 1, Duration: 2 * time.Millisecond, Success: true})
	tel.RecordOperation(ctx, OperationInfo{Operation: "query", Statements: 1, Duration: 20 * time.Second, Success: false})
	tel.RecordOperation(ctx, OperationInfo{Operation: "mutate", Statements: 3, Duration: 50 * time.Millisecond, Success: true})
	tel.RecordError(ctx, ErrorInfo{Operation: "query", Kind: "Timeout"})
	tel.RecordError(ctx, ErrorInfo{Operation: "query", Kind: "Timeout"})
	tel.RecordConnection(ctx, ConnectionInfo{Event: "connect", Success: true, OpenConnections: 2})
	tel.RecordConnection(ctx, ConnectionInfo{Event: "health_check", Success: false, OpenConnections: 1})

	s := tel.Snapshot()

	query := s.Operations["query"]
	assert.Equal(t, int64(1), query.Success)
	assert.Equal(t, int64(1), query.Failure)
	assert.Equal(t, int64(2), query.Statements)
	assert.Equal(t, int64(1), query.DurationHisto["0.005"])
	assert.Equal(t, int64(1), query.DurationHisto["10"])
	assert.Equal(t, int64(2), query.DurationHisto["+Inf"])

	mutate := s.Operations["mutate"]
	assert.Equal(t, int64(3), mutate.Statements)
	assert.Equal(t, int64(0), mutate.DurationHisto["0.01"])
	assert.Equal(t, int64(1), mutate.DurationHisto["0.05"])

	assert.Equal(t, int64(2), s.Errors["query/Timeout"])
	assert.Equal(t, int64(1), s.Connections["connect"])
	assert.Equal(t, int64(1), s.Connections["health_check_failed"])
	assert.Equal(t, 1, s.OpenConnections)
}

func TestMemoryTelemetry_SnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	tel := NewMemoryTelemetry()
	tel.RecordError(ctx, ErrorInfo{Operation: "query", Kind: "BackendError"})

	s := tel.Snapshot()
	s.Errors["query/BackendError"] = 100

	assert.Equal(t, int64(1), tel.Snapshot().Errors["query/BackendError"])
}
