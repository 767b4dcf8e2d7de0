package runners

import (
	"context"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// GraphSearchDefinition is the graph_search node type (spec.md §4.6.4).
var GraphSearchDefinition = flow.NodeDefinition{
	TypeKey: TypeGraphSearch,
	InputSchema: []flow.FieldDefinition{
		{Name: "top_k", Type: flow.FieldTypeInteger, Default: 5},
		{Name: "collection_ids", Type: flow.FieldTypeArray},
	},
	OutputSchema: []flow.FieldDefinition{
		{Name: "docs", Type: flow.FieldTypeArray},
	},
}

// GraphSearchRunner queries the collection's knowledge-graph backend in
// hybrid mode, returning a single Document whose text is the returned
// context block. It returns [] without querying anything when the
// collection has no graph capability configured. Like start, it reads the
// query from SystemInput rather than a bound input: graph_search's own
// input model has no query field (spec.md §4.6.4).
var GraphSearchRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
	topK := getInt(inputs, "top_k", 5)

	col := collectionFromSystem(system)
	if !col.HasGraph() {
		return flow.RunResult{Outputs: map[string]any{"docs": []retrieval.Document{}}}, nil
	}

	text, err := col.Graph.Query(ctx, system.Query, collection.GraphModeHybrid, topK, true)
	if err != nil {
		return flow.RunResult{}, err
	}
	if text == "" {
		return flow.RunResult{Outputs: map[string]any{"docs": []retrieval.Document{}}}, nil
	}

	doc := retrieval.Document{Text: text, Score: 1.0}.WithRecallType(retrieval.RecallGraph)
	return flow.RunResult{Outputs: map[string]any{"docs": []retrieval.Document{doc}}}, nil
}
