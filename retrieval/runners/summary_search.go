package runners

import (
	"context"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// SummarySearchDefinition is the summary_search node type (spec.md §4.6.3).
var SummarySearchDefinition = flow.NodeDefinition{
	TypeKey: TypeSummarySearch,
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

// summaryIndexerValue is the "indexer" metadata value that marks a chunk as
// a summary row, per spec.md §4.6.3.
const summaryIndexerValue = "summary"

// SummarySearchRunner behaves like vector_search but restricts the filter
// to chunks whose indexer metadata is "summary"; chunks lacking the field
// entirely also match, for backward compatibility with collections
// ingested before the summary indexer existed.
var SummarySearchRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
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

	indexerField := col.IndexerField
	if indexerField == "" {
		indexerField = "indexer"
	}
	filter := collection.Filter{
		MatchAny:     []collection.FilterClause{{Field: indexerField, Value: summaryIndexerValue}},
		RequireEmpty: indexerField,
	}

	var all []retrieval.Document
	for _, cid := range collectionIDs {
		docs, err := col.Vectors.Search(ctx, cid, vec, topK, threshold, filter)
		if err != nil {
			return flow.RunResult{}, err
		}
		all = append(all, docs...)
	}

	tagged := make([]retrieval.Document, len(all))
	for i, d := range all {
		tagged[i] = d.WithRecallType(retrieval.RecallSummary)
	}

	return flow.RunResult{Outputs: map[string]any{"docs": tagged}}, nil
}
