package runners

import (
	"context"
	"fmt"

	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// MergeDefinition is the merge node type (spec.md §4.6.5). Its input schema
// names the bindings it accepts at validation time; upstream search arrays
// bind to the fixed names below in whatever order the flow instance wires
// them, and that binding order is the merge order (spec.md §5 ordering
// guarantee (c)).
var MergeDefinition = flow.NodeDefinition{
	TypeKey: TypeMerge,
	InputSchema: []flow.FieldDefinition{
		{Name: "merge_strategy", Type: flow.FieldTypeString, Default: "union"},
		{Name: "deduplicate", Type: flow.FieldTypeBoolean, Default: true},
		{Name: "vector_search_docs", Type: flow.FieldTypeArray},
		{Name: "keyword_search_docs", Type: flow.FieldTypeArray},
		{Name: "summary_search_docs", Type: flow.FieldTypeArray},
		{Name: "graph_search_docs", Type: flow.FieldTypeArray},
	},
	OutputSchema: []flow.FieldDefinition{
		{Name: "docs", Type: flow.FieldTypeArray},
	},
}

// mergeInputOrder is the binding order the union strategy concatenates in,
// matching the field declaration order above.
var mergeInputOrder = []string{"vector_search_docs", "keyword_search_docs", "summary_search_docs", "graph_search_docs"}

// MergeRunner concatenates its array-typed inputs in binding order and
// optionally deduplicates by Document.Text, keeping the first occurrence.
var MergeRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
	strategy := getString(inputs, "merge_strategy", "union")
	if strategy != "union" {
		return flow.RunResult{}, fmt.Errorf("%w: %s", flow.ErrUnknownMergeStrat, strategy)
	}
	dedupe := getBool(inputs, "deduplicate", true)

	var merged []retrieval.Document
	for _, name := range mergeInputOrder {
		merged = append(merged, getDocs(inputs, name)...)
	}

	if dedupe {
		seen := make(map[string]bool, len(merged))
		out := make([]retrieval.Document, 0, len(merged))
		for _, d := range merged {
			if seen[d.Text] {
				continue
			}
			seen[d.Text] = true
			out = append(out, d)
		}
		merged = out
	}

	return flow.RunResult{Outputs: map[string]any{"docs": merged}}, nil
}
