package emit

import "context"

// Emitter receives and processes observability events from flow execution.
//
// Emitters enable pluggable observability backends: logging, distributed
// tracing, metrics, analytics. Implementations should be non-blocking,
// thread-safe, and resilient — a slow or failing backend must never slow
// down or crash node execution.
type Emitter interface {
	// Emit sends one event to the configured backend. Must not block and
	// must not panic; backend errors should be swallowed and logged
	// internally by the implementation.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation. Implementations
	// should preserve order and tolerate partial failures without
	// returning an error for per-event problems; a non-nil error return is
	// reserved for catastrophic, batch-wide failures.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all buffered events are sent or ctx is done. Safe
	// to call multiple times.
	Flush(ctx context.Context) error
}
