package runners

import (
	"context"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// VectorSearchDefinition is the vector_search node type (spec.md §4.6.1).
var VectorSearchDefinition = flow.NodeDefinition{
	TypeKey: TypeVectorSearch,
	InputSchema: []flow.FieldDefinition{
		{Name: "query", Type: flow.FieldTypeString, Required: true},
		{Name: "top_k", Type: flow.FieldTypeInteger, Default: 5},
		{Name: "similarity_threshold", Type: flow.FieldTypeFloat, Default: 0.7},
		{Name: "collection_ids", Type: flow.FieldTypeArray},
	},
	OutputSchema: []flow.FieldDefinition{
		{Name: "docs", Type: flow.FieldTypeArray},
	},
}

// VectorSearchRunner embeds query and searches the collection's vector
// index for its top_k nearest neighbours at or above similarity_threshold.
var VectorSearchRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
	query := getString(inputs, "query", "")
	if query == "" {
		return flow.RunResult{}, flow.ErrEmptyInput
	}
	topK := getInt(inputs, "top_k", 5)
	threshold := getFloat(inputs, "similarity_threshold", 0.7)
	collectionIDs := getStringSlice(inputs, "collection_ids")

	col := collectionFromSystem(system)
	if len(collectionIDs) == 0 || col.Vectors == nil || col.Embedding == nil {
		return flow.RunResult{Outputs: map[string]any{"docs": []retrieval.Document{}}}, nil
	}

	vec, err := col.Embedding.EmbedQuery(ctx, query)
	if err != nil {
		return flow.RunResult{}, err
	}

	var all []retrieval.Document
	for _, cid := range collectionIDs {
		docs, err := col.Vectors.Search(ctx, cid, vec, topK, threshold, collection.Filter{})
		if err != nil {
			return flow.RunResult{}, err
		}
		all = append(all, docs...)
	}

	tagged := make([]retrieval.Document, len(all))
	for i, d := range all {
		tagged[i] = d.WithRecallType(retrieval.RecallVector)
	}

	return flow.RunResult{Outputs: map[string]any{"docs": tagged}}, nil
}
