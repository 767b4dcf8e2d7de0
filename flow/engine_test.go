package flow

import (
	"context"
	"sync"
	"testing"

	"github.com/ragflow-go/ragflow/flow/emit"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []emit.Event
}

func (r *recordingEmitter) Emit(e emit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}
func (r *recordingEmitter) EmitBatch(ctx context.Context, events []emit.Event) error { return nil }
func (r *recordingEmitter) Flush(ctx context.Context) error                          { return nil }

func (r *recordingEmitter) kinds() []emit.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]emit.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func passthroughRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NodeDefinition{
		TypeKey:      "produce",
		OutputSchema: []FieldDefinition{{Name: "value", Type: FieldTypeString}},
	}, RunnerFunc(func(ctx context.Context, inputs map[string]any, system SystemInput) (RunResult, error) {
		return RunResult{Outputs: map[string]any{"value": "produced"}}, nil
	}))
	reg.Register(NodeDefinition{
		TypeKey:     "consume",
		InputSchema: []FieldDefinition{{Name: "in", Type: FieldTypeString, Required: true}},
		OutputSchema: []FieldDefinition{{Name: "out", Type: FieldTypeString}},
	}, RunnerFunc(func(ctx context.Context, inputs map[string]any, system SystemInput) (RunResult, error) {
		return RunResult{Outputs: map[string]any{"out": inputs["in"]}}, nil
	}))
	return reg
}

func TestEngine_Execute_RunsNodesInDependencyOrder(t *testing.T) {
	reg := passthroughRegistry()
	rec := &recordingEmitter{}
	engine := NewEngine(reg, emit.NewBus(rec))

	f := &FlowInstance{
		Nodes: map[string]*NodeInstance{
			"a": {ID: "a", TypeKey: "produce"},
			"b": {ID: "b", TypeKey: "consume", InputBindings: []InputBinding{Dynamic("in", "a", "value")}},
		},
	}

	exec, err := engine.Execute(context.Background(), f, SystemInput{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.ID == "" {
		t.Errorf("expected a non-empty execution ID")
	}

	out, ok := exec.Context.GetOutput("b", "out")
	if !ok || out != "produced" {
		t.Errorf("expected b.out=produced, got %v, %v", out, ok)
	}

	kinds := rec.kinds()
	if len(kinds) == 0 || kinds[0] != emit.FlowStart {
		t.Errorf("expected first event to be flow_start, got %v", kinds)
	}
	if kinds[len(kinds)-1] != emit.FlowEnd {
		t.Errorf("expected last event to be flow_end, got %v", kinds)
	}
}

func TestEngine_Execute_StructuralErrorNeverEmitsFlowStart(t *testing.T) {
	reg := passthroughRegistry()
	rec := &recordingEmitter{}
	engine := NewEngine(reg, emit.NewBus(rec))

	f := &FlowInstance{Nodes: map[string]*NodeInstance{}}

	if _, err := engine.Execute(context.Background(), f, SystemInput{}, nil); err == nil {
		t.Fatalf("expected a structural validation error")
	}
	if len(rec.kinds()) != 0 {
		t.Errorf("expected no events emitted for a flow that never began executing, got %v", rec.kinds())
	}
}

func TestEngine_Execute_NodeErrorEmitsNodeErrorAndFlowError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NodeDefinition{TypeKey: "fail"}, RunnerFunc(func(ctx context.Context, inputs map[string]any, system SystemInput) (RunResult, error) {
		return RunResult{}, ErrEmptyInput
	}))
	rec := &recordingEmitter{}
	engine := NewEngine(reg, emit.NewBus(rec))

	f := &FlowInstance{Nodes: map[string]*NodeInstance{"a": {ID: "a", TypeKey: "fail"}}}

	if _, err := engine.Execute(context.Background(), f, SystemInput{}, nil); err == nil {
		t.Fatalf("expected an error from the failing node")
	}

	kinds := rec.kinds()
	foundNodeError, foundFlowError := false, false
	for _, k := range kinds {
		if k == emit.NodeError {
			foundNodeError = true
		}
		if k == emit.FlowError {
			foundFlowError = true
		}
	}
	if !foundNodeError || !foundFlowError {
		t.Errorf("expected both node_error and flow_error events, got %v", kinds)
	}
}

func TestEngine_Execute_PreservesStreamAndSide(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NodeDefinition{TypeKey: "stream"}, RunnerFunc(func(ctx context.Context, inputs map[string]any, system SystemInput) (RunResult, error) {
		ch := make(chan Token, 1)
		ch <- Token{Text: "hi"}
		close(ch)
		return RunResult{
			Outputs: map[string]any{},
			Tokens:  ch,
			Side:    map[string]any{"references": []string{"doc-1"}},
		}, nil
	}))
	engine := NewEngine(reg, emit.NewBus(emit.NullEmitter{}))

	f := &FlowInstance{Nodes: map[string]*NodeInstance{"llm": {ID: "llm", TypeKey: "stream"}}}
	exec, err := engine.Execute(context.Background(), f, SystemInput{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tokens, ok := exec.Context.StreamHandle("llm")
	if !ok {
		t.Fatalf("expected a stream handle")
	}
	var texts []string
	for tok := range tokens {
		texts = append(texts, tok.Text)
	}
	if len(texts) != 1 || texts[0] != "hi" {
		t.Errorf("expected [hi], got %v", texts)
	}

	side, ok := exec.Context.Side("llm")
	if !ok {
		t.Fatalf("expected a side payload")
	}
	refs, _ := side["references"].([]string)
	if len(refs) != 1 || refs[0] != "doc-1" {
		t.Errorf("expected references [doc-1], got %v", refs)
	}
}

func TestEngine_Execute_CancelledContextStopsBeforeNextGroup(t *testing.T) {
	reg := passthroughRegistry()
	engine := NewEngine(reg, emit.NewBus(emit.NullEmitter{}))

	f := &FlowInstance{
		Nodes: map[string]*NodeInstance{
			"a": {ID: "a", TypeKey: "produce"},
			"b": {ID: "b", TypeKey: "consume", InputBindings: []InputBinding{Dynamic("in", "a", "value")}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Execute(ctx, f, SystemInput{}, nil)
	if err != ErrCancelled {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}
