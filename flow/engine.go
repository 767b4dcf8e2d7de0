package flow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragflow-go/ragflow/flow/emit"
)

// Engine drives a validated Flow Instance: it schedules node groups,
// dispatches each node to its registered Runner via the binder, and emits
// lifecycle events to the Bus. Each node of a group runs on its own
// errgroup goroutine, which binds the node's inputs, invokes its Runner and
// writes the results back to the ExecutionContext; the context's mutex
// serializes those concurrent writes.
type Engine struct {
	registry *Registry
	bus      *emit.Bus
	opts     EngineOptions
}

// NewEngine builds an Engine bound to reg for node-type lookups and bus for
// lifecycle events. Pass emit.NewBus(emit.NullEmitter{}) for a bus with no
// synchronous backend.
func NewEngine(reg *Registry, bus *emit.Bus, opts ...Option) *Engine {
	cfg := EngineOptions{}
	for _, o := range opts {
		o(&cfg)
	}
	return &Engine{registry: reg, bus: bus, opts: cfg}
}

// Execution holds the result of driving one Flow Instance: the final
// context (readable by the caller for outputs and any streaming handles)
// and the execution ID used on every emitted Event.
type Execution struct {
	ID      string
	Context *ExecutionContext
}

// StreamHandle returns the Tokens channel produced by nodeID's Runner, if
// that node streamed (only the completion node does, per spec.md §4.6.7).
// The second return value is false if the node produced no stream.
func (ec *ExecutionContext) StreamHandle(nodeID string) (<-chan Token, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	ch, ok := ec.streams[nodeID]
	return ch, ok
}

func (ec *ExecutionContext) setStream(nodeID string, ch <-chan Token) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.streams == nil {
		ec.streams = make(map[string]<-chan Token)
	}
	ec.streams[nodeID] = ch
}

// Execute validates f, computes its schedule, and runs every node in
// dependency order, group by group, writing each node's outputs into a
// fresh ExecutionContext seeded from globals. It returns a structural error
// immediately (before emitting flow_start) since a malformed flow never
// began executing; any other failure emits flow_error before returning.
func (e *Engine) Execute(ctx context.Context, f *FlowInstance, system SystemInput, globals map[string]any) (*Execution, error) {
	if err := Validate(f, e.registry); err != nil {
		return nil, err
	}
	groups, err := Schedule(f)
	if err != nil {
		return nil, err
	}

	execID := newExecutionID()
	ec := NewExecutionContext(globals)
	exec := &Execution{ID: execID, Context: ec}

	e.bus.Publish(Event{Kind: EventFlowStart, ExecutionID: execID, Timestamp: time.Now()})

	for _, group := range groups {
		select {
		case <-ctx.Done():
			e.bus.Publish(Event{Kind: EventFlowError, ExecutionID: execID, Timestamp: time.Now(), Payload: map[string]any{"kind": string(KindCancelled), "error": ctx.Err().Error()}})
			return exec, ErrCancelled
		default:
		}

		g, gctx := errgroup.WithContext(ctx)
		if e.opts.MaxConcurrentNodes > 0 {
			g.SetLimit(e.opts.MaxConcurrentNodes)
		}

		for _, nodeID := range group {
			nodeID := nodeID
			g.Go(func() error {
				return e.runNode(gctx, f, execID, nodeID, system, ec)
			})
		}

		if err := g.Wait(); err != nil {
			kind := ClassifyError(err)
			e.bus.Publish(Event{Kind: EventFlowError, ExecutionID: execID, Timestamp: time.Now(), Payload: map[string]any{"kind": string(kind), "error": err.Error()}})
			if kind == KindCancelled {
				return exec, ErrCancelled
			}
			return exec, err
		}
	}

	e.bus.Publish(Event{Kind: EventFlowEnd, ExecutionID: execID, Timestamp: time.Now()})
	return exec, nil
}

func (e *Engine) runNode(ctx context.Context, f *FlowInstance, execID, nodeID string, system SystemInput, ec *ExecutionContext) error {
	node := f.Nodes[nodeID]
	def, err := e.registry.Definition(node.TypeKey)
	if err != nil {
		return err
	}
	runner, err := e.registry.RunnerFor(node.TypeKey)
	if err != nil {
		return err
	}

	inputs, err := Bind(node, def, ec)
	if err != nil {
		return err
	}

	e.bus.Publish(Event{Kind: EventNodeStart, NodeID: nodeID, ExecutionID: execID, Timestamp: time.Now()})

	nodeCtx := ctx
	var cancel context.CancelFunc
	if e.opts.DefaultNodeTimeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, e.opts.DefaultNodeTimeout)
		defer cancel()
	}

	system.Ctx = nodeCtx
	result, err := runner.Run(nodeCtx, inputs, system)
	if err != nil {
		if ctx.Err() != nil {
			e.bus.Publish(Event{Kind: EventNodeError, NodeID: nodeID, ExecutionID: execID, Timestamp: time.Now(), Payload: map[string]any{"kind": string(KindCancelled)}})
			return ErrCancelled
		}
		kind := ClassifyError(err)
		e.bus.Publish(Event{Kind: EventNodeError, NodeID: nodeID, ExecutionID: execID, Timestamp: time.Now(), Payload: map[string]any{"kind": string(kind), "error": err.Error()}})
		return NewNodeError(nodeID, err)
	}

	ec.SetOutputs(nodeID, result.Outputs)
	if result.Tokens != nil {
		ec.setStream(nodeID, result.Tokens)
	}
	if result.Side != nil {
		ec.setSide(nodeID, result.Side)
	}
	e.bus.Publish(Event{Kind: EventNodeEnd, NodeID: nodeID, ExecutionID: execID, Timestamp: time.Now()})
	return nil
}

func newExecutionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("exec-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
