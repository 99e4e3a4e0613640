package telemetry

import (
	"context"
	"time"
)

// Query filters a read over the trace table. Zero-valued fields are
// unconstrained; SessionID and IDPrefix are mutually complementary but
// may be combined (both narrow the result set).
type Query struct {
	IDPrefix  string
	SessionID string
	After     time.Time
	Before    time.Time
	Limit     int
}

// Store is the durable telemetry backend. Writes must be append-only and
// complete before the process exits; the write path itself must never
// sit on the critical latency path of event emission (see Recorder).
type Store interface {
	SaveTrace(ctx context.Context, trace Trace) error
	SaveToolCallRecord(ctx context.Context, record ToolCallRecord) error

	GetTrace(ctx context.Context, id string) (Trace, error)
	QueryTraces(ctx context.Context, query Query) ([]Trace, error)
	ToolCallsForTrace(ctx context.Context, traceID string) ([]ToolCallRecord, error)

	// Close flushes any buffered writes and releases underlying
	// resources. Callers must call Close before process exit to honor
	// the store's durability guarantee.
	Close() error
}
