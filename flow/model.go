// Package flow implements the validation, scheduling, and execution of
// query-time flow graphs: directed acyclic graphs of typed nodes that
// cooperate to answer a question over a document collection.
package flow

import (
	"time"

	"github.com/ragflow-go/ragflow/flow/emit"
)

// FieldType enumerates the runtime value kinds a Field can hold.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeFloat   FieldType = "float"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray    FieldType = "array"
	FieldTypeObject   FieldType = "object"
)

// FieldDefinition describes one named input or output slot of a node type.
type FieldDefinition struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Default     any
}

// NodeDefinition is the immutable, process-wide schema for a node type,
// registered once via Registry.Register.
type NodeDefinition struct {
	TypeKey      string
	InputSchema  []FieldDefinition
	OutputSchema []FieldDefinition
	Description  string
}

// FieldByName returns the field definition with the given name from schema,
// or nil if absent.
func FieldByName(schema []FieldDefinition, name string) *FieldDefinition {
	for i := range schema {
		if schema[i].Name == name {
			return &schema[i]
		}
	}
	return nil
}

// BindingKind discriminates the three InputBinding variants.
type BindingKind string

const (
	BindingStatic  BindingKind = "static"
	BindingDynamic BindingKind = "dynamic"
	BindingGlobal  BindingKind = "global"
)

// InputBinding is a tagged union describing how one input field of a node
// instance receives its value at dispatch time. Exactly one of the
// variant-specific field groups is meaningful, selected by Kind.
type InputBinding struct {
	Kind BindingKind

	// Name is the input field this binding fills; shared by all variants.
	Name string

	// Static variant.
	Value any

	// Dynamic variant.
	RefNode  string
	RefField string

	// Global variant.
	GlobalVar string
}

// Static constructs a Static input binding.
func Static(name string, value any) InputBinding {
	return InputBinding{Kind: BindingStatic, Name: name, Value: value}
}

// Dynamic constructs a Dynamic input binding referencing another node's output.
func Dynamic(name, refNode, refField string) InputBinding {
	return InputBinding{Kind: BindingDynamic, Name: name, RefNode: refNode, RefField: refField}
}

// Global constructs a Global input binding referencing a flow-scoped global.
func Global(name, globalVar string) InputBinding {
	return InputBinding{Kind: BindingGlobal, Name: name, GlobalVar: globalVar}
}

// NodeInstance is one node in a Flow Instance.
//
// InputBindings is the canonical home for a node's bindings. The original
// source tolerated both an `input_values` map and a `vars` list on the same
// struct; this reimplementation keeps exactly one field and migrates callers
// to it (see DESIGN.md, Open Questions).
type NodeInstance struct {
	ID            string
	TypeKey       string
	Name          string
	InputBindings []InputBinding
	DependsOn     map[string]struct{}
}

// Edge is a directed dependency between two node instances.
type Edge struct {
	SourceID string
	TargetID string
}

// GlobalVariable is a flow-scoped named value seeded from the pipeline's
// initial payload.
type GlobalVariable struct {
	Name        string
	Type        FieldType
	Description string
	Value       any
}

// FlowInstance is a concrete DAG of typed nodes with bindings and globals.
type FlowInstance struct {
	ID        string
	Name      string
	Nodes     map[string]*NodeInstance
	Edges     []Edge
	Globals   map[string]GlobalVariable
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventKind and Event are defined in flow/emit so the event bus package has
// no dependency back on flow; these aliases let flow callers keep writing
// flow.Event / flow.EventFlowStart.
type EventKind = emit.Kind

const (
	EventFlowStart = emit.FlowStart
	EventFlowEnd   = emit.FlowEnd
	EventFlowError = emit.FlowError
	EventNodeStart = emit.NodeStart
	EventNodeEnd   = emit.NodeEnd
	EventNodeError = emit.NodeError
)

type Event = emit.Event
