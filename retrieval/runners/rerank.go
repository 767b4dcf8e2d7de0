package runners

import (
	"context"

	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// RerankDefinition is the rerank node type (spec.md §4.6.6). The candidate
// pool handed in on docs is expected to already be oversampled relative to
// top_k (spec.md §4.7, retrieval.Policy.RerankOversample) by whatever search
// nodes feed the merge upstream of this one; this node reranks that pool in
// its entirety and then truncates to top_k.
var RerankDefinition = flow.NodeDefinition{
	TypeKey: TypeRerank,
	InputSchema: []flow.FieldDefinition{
		{Name: "model", Type: flow.FieldTypeString},
		{Name: "top_k", Type: flow.FieldTypeInteger, Default: 5},
		{Name: "docs", Type: flow.FieldTypeArray},
	},
	OutputSchema: []flow.FieldDefinition{
		{Name: "docs", Type: flow.FieldTypeArray},
	},
}

// RerankRunner submits (query, texts) to the collection's rerank service,
// reorders docs by the returned permutation, and truncates to top_k.
// Invalid indices are dropped; an empty input short-circuits without
// calling the service.
var RerankRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
	docs := getDocs(inputs, "docs")
	if len(docs) == 0 {
		return flow.RunResult{Outputs: map[string]any{"docs": []retrieval.Document{}}}, nil
	}
	topK := getInt(inputs, "top_k", 5)

	rerank := rerankFromSystem(system)
	if rerank == nil {
		return flow.RunResult{Outputs: map[string]any{"docs": truncate(docs, topK)}}, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	var order []int
	err := flow.DefaultRetryPolicy().Do(ctx, func(ctx context.Context) error {
		var rankErr error
		order, rankErr = rerank.Rank(ctx, system.Query, texts)
		return rankErr
	})
	if err != nil {
		return flow.RunResult{}, err
	}

	reordered := make([]retrieval.Document, 0, len(order))
	for _, idx := range order {
		if idx < 0 || idx >= len(docs) {
			continue
		}
		reordered = append(reordered, docs[idx])
	}

	return flow.RunResult{Outputs: map[string]any{"docs": truncate(reordered, topK)}}, nil
}

func truncate(docs []retrieval.Document, topK int) []retrieval.Document {
	if topK <= 0 || topK >= len(docs) {
		return docs
	}
	return docs[:topK]
}
