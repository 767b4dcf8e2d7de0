package runners

import (
	"context"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// defaultPolicy supplies the keyword oversample factor (spec.md §4.6.2:
// keyword_search asks the full-text index for 3x top_k hits to preserve
// recall for downstream rerank). It is an unexported package variable, so
// the factor is fixed for every flow that uses this runner.
var defaultPolicy = retrieval.DefaultPolicy()

// minimumShouldMatch is the best-fields boolean match threshold spec.md
// §4.6.2 specifies ("≈ 80%").
const minimumShouldMatch = 0.8

// KeywordSearchDefinition builds the keyword_search node type under the
// given type key, since fulltext_search is registered as an alias of the
// same definition and runner (spec.md §4.6.2 names both).
func KeywordSearchDefinition(typeKey string) flow.NodeDefinition {
	return flow.NodeDefinition{
		TypeKey: typeKey,
		InputSchema: []flow.FieldDefinition{
			{Name: "query", Type: flow.FieldTypeString, Required: true},
			{Name: "top_k", Type: flow.FieldTypeInteger, Default: 5},
			{Name: "collection_ids", Type: flow.FieldTypeArray},
		},
		OutputSchema: []flow.FieldDefinition{
			{Name: "docs", Type: flow.FieldTypeArray},
		},
	}
}

// KeywordSearchRunner analyzes query into tokens and runs a best-fields
// boolean match against the collection's full-text index, oversampling by
// defaultPolicy.KeywordOversample to preserve recall for downstream rerank.
var KeywordSearchRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
	query := getString(inputs, "query", "")
	if query == "" {
		return flow.RunResult{}, flow.ErrEmptyInput
	}
	topK := getInt(inputs, "top_k", 5)
	collectionIDs := getStringSlice(inputs, "collection_ids")

	col := collectionFromSystem(system)
	if len(collectionIDs) == 0 || col.FullText == nil {
		return flow.RunResult{Outputs: map[string]any{"docs": []retrieval.Document{}}}, nil
	}

	keywords := retrieval.ExtractKeywords(query, 0)

	var docs []retrieval.Document
	for _, cid := range collectionIDs {
		exists, err := col.FullText.Exists(ctx, cid)
		if err != nil {
			return flow.RunResult{}, err
		}
		if !exists {
			continue
		}

		should := make([]collection.MatchClause, 0, len(keywords))
		for _, kw := range keywords {
			should = append(should, collection.MatchClause{Field: "content", Keyword: kw})
		}

		hits, err := col.FullText.Search(ctx, cid, should, minimumShouldMatch, topK*defaultPolicy.KeywordOversample)
		if err != nil {
			return flow.RunResult{}, err
		}
		for _, h := range hits {
			docs = append(docs, retrieval.Document{
				Text:     h.Content,
				Score:    h.Score,
				Metadata: mergeMetadata(h.Metadata, map[string]any{"source": h.Name}),
			}.WithRecallType(retrieval.RecallKeyword))
		}
	}

	return flow.RunResult{Outputs: map[string]any{"docs": docs}}, nil
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	md := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		md[k] = v
	}
	for k, v := range extra {
		md[k] = v
	}
	return md
}
