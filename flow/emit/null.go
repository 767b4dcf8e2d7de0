package emit

import "context"

// NullEmitter discards every event. Useful as a default when no
// observability backend is configured, and in tests that don't care about
// event output.
type NullEmitter struct{}

func (NullEmitter) Emit(Event) {}

func (NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (NullEmitter) Flush(context.Context) error { return nil }
