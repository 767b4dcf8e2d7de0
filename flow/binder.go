package flow

import "fmt"

// Bind resolves a node's inputs from static/dynamic/global sources against
// the execution context just before dispatch (spec.md §4.5). It initializes
// inputs from the node's declared defaults, applies each binding in turn,
// then enforces that every required field ended up with a non-null value.
func Bind(node *NodeInstance, def NodeDefinition, ec *ExecutionContext) (map[string]any, error) {
	inputs := make(map[string]any, len(def.InputSchema))
	for _, field := range def.InputSchema {
		if field.Default != nil {
			inputs[field.Name] = field.Default
		}
	}

	for _, b := range node.InputBindings {
		field := FieldByName(def.InputSchema, b.Name)
		if field == nil {
			return nil, fmt.Errorf("%w: node %s has no input field %s", ErrUnknownNodeRef, node.ID, b.Name)
		}

		var value any
		switch b.Kind {
		case BindingStatic:
			value = b.Value
		case BindingDynamic:
			v, ok := ec.GetOutput(b.RefNode, b.RefField)
			if !ok {
				return nil, fmt.Errorf("%w: node %s -> %s.%s not yet produced", ErrForwardReference, node.ID, b.RefNode, b.RefField)
			}
			value = v
		case BindingGlobal:
			v, ok := ec.GetGlobal(b.GlobalVar)
			if !ok {
				return nil, fmt.Errorf("%w: node %s global %s", ErrMissingGlobal, node.ID, b.GlobalVar)
			}
			value = v
		default:
			return nil, fmt.Errorf("%w: node %s unknown binding kind %q", ErrTypeMismatch, node.ID, b.Kind)
		}

		coerced, err := coerce(field.Type, value)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s field %s: %v", ErrTypeMismatch, node.ID, b.Name, err)
		}
		inputs[b.Name] = coerced
	}

	for _, field := range def.InputSchema {
		if field.Required {
			if v, ok := inputs[field.Name]; !ok || v == nil {
				return nil, fmt.Errorf("%w: node %s field %s", ErrMissingRequired, node.ID, field.Name)
			}
		}
	}
	return inputs, nil
}

// coerce performs the "numeric widening only" type coercion spec.md §4.5
// allows: int->float is unambiguous, everything else must already match.
func coerce(t FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case FieldTypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("cannot widen %T to float", v)
		}
	case FieldTypeInteger:
		switch n := v.(type) {
		case int:
			return n, nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
	case FieldTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)
	case FieldTypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected boolean, got %T", v)
	default:
		return v, nil
	}
}
