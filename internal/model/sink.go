package model

import "context"

// AuditSink records completed query responses for later inspection.
type AuditSink interface {
	// Record persists one finished response.
	Record(ctx context.Context, resp *AggregateResponse) error

	// Close flushes and releases the sink.
	Close() error
}
