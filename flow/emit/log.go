package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing one structured log line per
// event to a writer. Supports text (human-readable key=value) and JSON
// (one object per line, suitable for log aggregation) output modes.
//
// Every event passes through LogEmitter at INFO level regardless of which
// other emitters are configured (spec.md §4.8: "the bus may also
// synchronously log every event at INFO level"); wire it into a MultiEmitter
// alongside any tracing/metrics emitter rather than replacing it.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to w (os.Stdout if nil).
func NewLogEmitter(w io.Writer, jsonMode bool) *LogEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &LogEmitter{writer: w, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		ExecutionID string         `json:"executionID"`
		Kind        Kind           `json:"kind"`
		NodeID      string         `json:"nodeID"`
		Timestamp   string         `json:"timestamp"`
		Payload     map[string]any `json:"payload,omitempty"`
	}{
		ExecutionID: event.ExecutionID,
		Kind:        event.Kind,
		NodeID:      event.NodeID,
		Timestamp:   event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Payload:     event.Payload,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] executionID=%s nodeID=%s", event.Kind, event.ExecutionID, event.NodeID)
	if len(event.Payload) > 0 {
		if metaJSON, err := json.Marshal(event.Payload); err == nil {
			_, _ = fmt.Fprintf(l.writer, " payload=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " payload=%v", event.Payload)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal buffer.
func (l *LogEmitter) Flush(_ context.Context) error { return nil }
