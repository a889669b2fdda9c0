package telemetry

import "context"

// NoopTelemetry discards everything.
type NoopTelemetry struct{}

// NewNoopTelemetry creates a new no-op telemetry adapter.
func NewNoopTelemetry() *NoopTelemetry {
	return &NoopTelemetry{}
}

// RecordOperation does nothing.
func (n *NoopTelemetry) RecordOperation(ctx context.Context, info OperationInfo) {}

// RecordError does nothing.
func (n *NoopTelemetry) RecordError(ctx context.Context, info ErrorInfo) {}

// RecordConnection does nothing.
func (n *NoopTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {}

// Flush does nothing.
func (n *NoopTelemetry) Flush(ctx context.Context) error {
	return nil
}

// Close does nothing.
func (n *NoopTelemetry) Close(ctx context.Context) error {
	return nil
}

var _ Telemetry = (*NoopTelemetry)(nil)
