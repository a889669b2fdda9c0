// Package telemetry records gateway operation metrics.
package telemetry

import (
	"context"
	"time"
)

// Telemetry defines the telemetry adapter interface.
type Telemetry interface {
	// RecordOperation records one coordinator operation.
	RecordOperation(ctx context.Context, info OperationInfo)

	// RecordError records a failed operation.
	RecordError(ctx context.Context, info ErrorInfo)

	// RecordConnection records a pool event.
	RecordConnection(ctx context.Context, info ConnectionInfo)

	// Flush flushes any buffered telemetry data.
	Flush(ctx context.Context) error

	// Close closes the telemetry adapter.
	Close(ctx context.Context) error
}

// OperationInfo describes one executed operation.
type OperationInfo struct {
	// Operation is query or mutate.
	Operation string

	// Statements is the number of statements run.
	Statements int

	// Duration is how long the operation took.
	Duration time.Duration

	// Success indicates if the operation succeeded.
	Success bool
}

// ErrorInfo describes a failed operation.
type ErrorInfo struct {
	// Operation is the operation that failed.
	Operation string

	// Kind is the wire name of the error kind.
	Kind string

	// Code is the backend's native error code, if any.
	Code string
}

// ConnectionInfo contains information about a connection event.
type ConnectionInfo struct {
	// Event is the event type (connect, disconnect, health_check).
	Event string

	// Success indicates if the operation succeeded.
	Success bool

	// OpenConnections is the number of open connections.
	OpenConnections int
}

// Config holds telemetry configuration.
type Config struct {
	// Type is noop or memory.
	Type string
}
