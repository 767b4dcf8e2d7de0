package flow

import (
	"fmt"
)

// Validate performs the structural checks of spec.md §4.2 against a Flow
// Instance, in order: topological sort (cycle detection), per-node
// definition resolution, then per-binding checks (I3-I7). Validate is
// deterministic and side-effect-free.
func Validate(f *FlowInstance, reg *Registry) error {
	order, err := topologicalOrder(f)
	if err != nil {
		return err
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	for _, id := range order {
		node := f.Nodes[id]
		def, err := reg.Definition(node.TypeKey)
		if err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		if err := validateBindings(f, reg, node, def, position); err != nil {
			return err
		}
	}
	return nil
}

// topologicalOrder computes a topological order via Kahn's algorithm (I2).
// An empty graph is reported as ErrEmptyOrCyclicGraph; nodes still
// unvisited when the zero-in-degree queue drains are reported as
// ErrCycleDetected.
func topologicalOrder(f *FlowInstance) ([]string, error) {
	inDegree := make(map[string]int, len(f.Nodes))
	adj := make(map[string][]string, len(f.Nodes))
	for id := range f.Nodes {
		inDegree[id] = 0
	}

	for _, e := range f.Edges {
		if _, ok := f.Nodes[e.SourceID]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrUnknownNodeRef, e.SourceID)
		}
		if _, ok := f.Nodes[e.TargetID]; !ok {
			return nil, fmt.Errorf("%w: edge target %s", ErrUnknownNodeRef, e.TargetID)
		}
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
		inDegree[e.TargetID]++
	}

	// Dynamic bindings imply dependency edges even when the caller omitted
	// the corresponding Edge; fold them into the same in-degree count so a
	// flow described purely through bindings still validates (I3, edge set
	// "must equal or be a supergraph of the dependency set implied by
	// bindings" per spec.md §3).
	implied := make(map[[2]string]bool)
	for _, e := range f.Edges {
		implied[[2]string{e.SourceID, e.TargetID}] = true
	}
	for id, node := range f.Nodes {
		for _, b := range node.InputBindings {
			if b.Kind != BindingDynamic {
				continue
			}
			if _, ok := f.Nodes[b.RefNode]; !ok {
				continue // reported precisely in validateBindings
			}
			key := [2]string{b.RefNode, id}
			if implied[key] {
				continue
			}
			implied[key] = true
			adj[b.RefNode] = append(adj[b.RefNode], id)
			inDegree[id]++
		}
	}

	if len(f.Nodes) == 0 {
		return nil, ErrEmptyOrCyclicGraph
	}

	queue := make([]string, 0, len(f.Nodes))
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	// Stable ordering: sort the initial frontier (and subsequent pushes) by
	// ID so Validate is deterministic across repeated calls on an unchanged
	// flow (round-trip property in spec.md §8).
	sortStrings(queue)

	order := make([]string, 0, len(f.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]string(nil), adj[id]...)
		sortStrings(next)
		for _, tgt := range next {
			inDegree[tgt]--
			if inDegree[tgt] == 0 {
				queue = insertSorted(queue, tgt)
			}
		}
	}

	if len(order) != len(f.Nodes) {
		return nil, ErrCycleDetected
	}
	return order, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func insertSorted(s []string, v string) []string {
	i := 0
	for i < len(s) && s[i] < v {
		i++
	}
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func validateBindings(f *FlowInstance, reg *Registry, node *NodeInstance, def NodeDefinition, position map[string]int) error {
	seen := make(map[string]bool, len(node.InputBindings))
	for _, b := range node.InputBindings {
		if seen[b.Name] {
			return fmt.Errorf("%w: node %s field %s", ErrDuplicateBinding, node.ID, b.Name)
		}
		seen[b.Name] = true

		field := FieldByName(def.InputSchema, b.Name)
		if field == nil {
			return fmt.Errorf("%w: node %s has no input field %s", ErrUnknownNodeRef, node.ID, b.Name)
		}

		switch b.Kind {
		case BindingStatic:
			if err := checkType(field.Type, b.Value); err != nil {
				return fmt.Errorf("%w: node %s field %s: %v", ErrTypeMismatch, node.ID, b.Name, err)
			}
		case BindingDynamic:
			refNode, ok := f.Nodes[b.RefNode]
			if !ok {
				return fmt.Errorf("%w: node %s references unknown node %s", ErrUnknownNodeRef, node.ID, b.RefNode)
			}
			refDef, err := reg.Definition(refNode.TypeKey)
			if err != nil {
				return fmt.Errorf("node %s: %w", refNode.ID, err)
			}
			if FieldByName(refDef.OutputSchema, b.RefField) == nil {
				return fmt.Errorf("%w: node %s field %s has no output %s", ErrUnknownNodeRef, node.ID, b.RefNode, b.RefField)
			}
			refPos, ok := position[b.RefNode]
			if !ok {
				return fmt.Errorf("%w: node %s -> %s", ErrForwardReference, node.ID, b.RefNode)
			}
			if refPos >= position[node.ID] {
				return fmt.Errorf("%w: node %s -> %s", ErrForwardReference, node.ID, b.RefNode)
			}
		case BindingGlobal:
			if _, ok := f.Globals[b.GlobalVar]; !ok {
				return fmt.Errorf("%w: node %s global %s", ErrMissingGlobal, node.ID, b.GlobalVar)
			}
		default:
			return fmt.Errorf("%w: node %s unknown binding kind %q", ErrTypeMismatch, node.ID, b.Kind)
		}
	}

	for _, field := range def.InputSchema {
		if field.Required && !seen[field.Name] {
			return fmt.Errorf("%w: node %s field %s", ErrMissingRequired, node.ID, field.Name)
		}
	}
	return nil
}

func checkType(t FieldType, v any) error {
	if v == nil {
		return nil
	}
	switch t {
	case FieldTypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case FieldTypeInteger:
		switch v.(type) {
		case int, int32, int64:
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	case FieldTypeFloat:
		switch v.(type) {
		case float32, float64, int, int32, int64:
		default:
			return fmt.Errorf("expected float, got %T", v)
		}
	case FieldTypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case FieldTypeArray:
		switch v.(type) {
		case []any, []string, []float32, []float64:
		default:
			return fmt.Errorf("expected array, got %T", v)
		}
	case FieldTypeObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", v)
		}
	}
	return nil
}
