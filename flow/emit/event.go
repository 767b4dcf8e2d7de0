// Package emit provides the flow lifecycle event bus: fan-out of flow/node
// start, end, and error notifications to in-process consumers.
package emit

import "time"

// Kind enumerates the lifecycle points a flow Event can describe.
type Kind string

const (
	FlowStart Kind = "flow_start"
	FlowEnd   Kind = "flow_end"
	FlowError Kind = "flow_error"
	NodeStart Kind = "node_start"
	NodeEnd   Kind = "node_end"
	NodeError Kind = "node_error"
)

// Event is one lifecycle notification emitted by the engine during a run.
//
// NodeID is empty for flow-level events (flow_start, flow_end, flow_error).
// Payload carries kind-specific structured data, e.g. "duration_ms" on
// node_end, "error" on node_error / flow_error.
type Event struct {
	Kind        Kind
	NodeID      string
	ExecutionID string
	Timestamp   time.Time
	Payload     map[string]any
}
