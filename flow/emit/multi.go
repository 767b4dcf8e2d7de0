package emit

import "context"

// MultiEmitter fans a single Emit/EmitBatch/Flush call out to every
// configured backend, matching the teacher's "multi-emit" pattern: combine
// logging with tracing and metrics without either backend knowing about the
// other.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter combines several emitters into one.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

func (m *MultiEmitter) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, e := range m.emitters {
		if err := e.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiEmitter) Flush(ctx context.Context) error {
	var firstErr error
	for _, e := range m.emitters {
		if err := e.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
