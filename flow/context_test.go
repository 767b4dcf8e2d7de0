package flow

import "testing"

func TestExecutionContext_GlobalsRoundTrip(t *testing.T) {
	ec := NewExecutionContext(map[string]any{"seed": "value"})
	if v, ok := ec.GetGlobal("seed"); !ok || v != "value" {
		t.Errorf("expected seed=value, got %v, %v", v, ok)
	}
	if _, ok := ec.GetGlobal("missing"); ok {
		t.Errorf("expected missing global to be absent")
	}

	ec.SetGlobal("added", 42)
	if v, ok := ec.GetGlobal("added"); !ok || v != 42 {
		t.Errorf("expected added=42, got %v, %v", v, ok)
	}
}

func TestExecutionContext_OutputsRoundTrip(t *testing.T) {
	ec := NewExecutionContext(nil)
	ec.SetOutputs("node1", map[string]any{"docs": []string{"a"}})

	if v, ok := ec.GetOutput("node1", "docs"); !ok {
		t.Errorf("expected output to be present")
	} else if got, ok := v.([]string); !ok || len(got) != 1 || got[0] != "a" {
		t.Errorf("expected [a], got %v", v)
	}

	if _, ok := ec.GetOutput("node1", "missing_field"); ok {
		t.Errorf("expected missing field to be absent")
	}
	if _, ok := ec.GetOutput("unknown_node", "docs"); ok {
		t.Errorf("expected unknown node to be absent")
	}
}

func TestExecutionContext_OutputsReturnsAllNodesAsACopy(t *testing.T) {
	ec := NewExecutionContext(nil)
	ec.SetOutputs("node1", map[string]any{"x": 1})
	ec.SetOutputs("node2", map[string]any{"y": 2})

	all := ec.Outputs()
	if len(all) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(all))
	}
	all["node1"]["x"] = 999
	if v, _ := ec.GetOutput("node1", "x"); v != 1 {
		t.Errorf("expected Outputs() to return a copy, mutation leaked into %v", v)
	}
}

func TestExecutionContext_SecondWriteToSameNodePanics(t *testing.T) {
	ec := NewExecutionContext(nil)
	ec.SetOutputs("node1", map[string]any{"x": 1})

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on duplicate SetOutputs")
		}
	}()
	ec.SetOutputs("node1", map[string]any{"x": 2})
}

func TestExecutionContext_StreamHandleRoundTrip(t *testing.T) {
	ec := NewExecutionContext(nil)
	ch := make(chan Token)
	close(ch)
	ec.setStream("llm", ch)

	got, ok := ec.StreamHandle("llm")
	if !ok {
		t.Fatalf("expected stream handle to be present")
	}
	if got != (<-chan Token)(ch) {
		t.Errorf("expected the same channel back")
	}

	if _, ok := ec.StreamHandle("missing"); ok {
		t.Errorf("expected missing node to have no stream")
	}
}

func TestExecutionContext_SideRoundTrip(t *testing.T) {
	ec := NewExecutionContext(nil)
	if _, ok := ec.Side("llm"); ok {
		t.Errorf("expected no side payload before it is set")
	}

	ec.setSide("llm", map[string]any{"references": []string{"doc-1"}})
	side, ok := ec.Side("llm")
	if !ok {
		t.Fatalf("expected side payload to be present")
	}
	refs, _ := side["references"].([]string)
	if len(refs) != 1 || refs[0] != "doc-1" {
		t.Errorf("expected references [doc-1], got %v", refs)
	}
}
