package emit

import (
	"context"
	"errors"
	"testing"
)

type countingEmitter struct {
	count      int
	batchErr   error
	flushErr   error
}

func (c *countingEmitter) Emit(Event) { c.count++ }
func (c *countingEmitter) EmitBatch(context.Context, []Event) error {
	c.count++
	return c.batchErr
}
func (c *countingEmitter) Flush(context.Context) error { return c.flushErr }

func TestMultiEmitter_FansOutToEveryBackend(t *testing.T) {
	a, b := &countingEmitter{}, &countingEmitter{}
	m := NewMultiEmitter(a, b)

	m.Emit(Event{Kind: FlowStart})

	if a.count != 1 || b.count != 1 {
		t.Errorf("expected both backends to receive the event, got a=%d b=%d", a.count, b.count)
	}
}

func TestMultiEmitter_EmitBatchReturnsFirstError(t *testing.T) {
	errA := errors.New("backend a failed")
	a := &countingEmitter{batchErr: errA}
	b := &countingEmitter{}
	m := NewMultiEmitter(a, b)

	err := m.EmitBatch(context.Background(), []Event{{Kind: FlowStart}})
	if !errors.Is(err, errA) {
		t.Errorf("expected first backend's error, got %v", err)
	}
	if b.count != 1 {
		t.Errorf("expected second backend to still run despite first's error")
	}
}

func TestMultiEmitter_FlushAggregatesAllBackends(t *testing.T) {
	errB := errors.New("backend b flush failed")
	a := &countingEmitter{}
	b := &countingEmitter{flushErr: errB}
	m := NewMultiEmitter(a, b)

	if err := m.Flush(context.Background()); !errors.Is(err, errB) {
		t.Errorf("expected backend b's flush error, got %v", err)
	}
}
