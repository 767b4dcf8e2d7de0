// Package runners implements the catalogue of node runners spec.md §4.6
// describes: start, vector_search, keyword_search (aliased fulltext_search),
// summary_search, graph_search, merge, rerank, and llm (completion). Each
// runner is exposed as a flow.NodeDefinition plus a flow.Runner; Register
// wires all of them into a flow.Registry.
package runners

import (
	"context"

	"github.com/ragflow-go/ragflow/collection"
	"github.com/ragflow-go/ragflow/flow"
)

// TypeKeys for every runner in the catalogue.
const (
	TypeStart         = "start"
	TypeVectorSearch  = "vector_search"
	TypeKeywordSearch = "keyword_search"
	TypeSummarySearch = "summary_search"
	TypeGraphSearch   = "graph_search"
	TypeMerge         = "merge"
	TypeRerank        = "rerank"
	TypeCompletion    = "llm"

	// TypeFulltextSearch is a spelled-out alias spec.md §4.6.2 names
	// alongside keyword_search; both keys share one definition and runner.
	TypeFulltextSearch = "fulltext_search"
)

// StartDefinition is the identity pass-through node every flow begins with.
var StartDefinition = flow.NodeDefinition{
	TypeKey:      TypeStart,
	InputSchema:  nil,
	OutputSchema: []flow.FieldDefinition{{Name: "query", Type: flow.FieldTypeString, Required: true}},
}

// StartRunner surfaces SystemInput.Query as its output so downstream nodes
// can bind uniformly to start.query (spec.md §4.6.8).
var StartRunner flow.RunnerFunc = func(ctx context.Context, inputs map[string]any, system flow.SystemInput) (flow.RunResult, error) {
	return flow.RunResult{Outputs: map[string]any{"query": system.Query}}, nil
}

// Register wires every runner in the catalogue into reg.
func Register(reg *flow.Registry) {
	reg.Register(StartDefinition, StartRunner)
	reg.Register(VectorSearchDefinition, VectorSearchRunner)
	reg.Register(KeywordSearchDefinition(TypeKeywordSearch), KeywordSearchRunner)
	reg.Register(KeywordSearchDefinition(TypeFulltextSearch), KeywordSearchRunner)
	reg.Register(SummarySearchDefinition, SummarySearchRunner)
	reg.Register(GraphSearchDefinition, GraphSearchRunner)
	reg.Register(MergeDefinition, MergeRunner)
	reg.Register(RerankDefinition, RerankRunner)
	reg.Register(CompletionDefinition, CompletionRunner)
}

// collectionFromSystem recovers the Collection bundle SystemInput.Collection
// carries as `any`. A runner invoked with no collection configured (a
// programming error upstream) returns the zero Collection, whose nil
// service fields each runner already treats as "capability unavailable".
func collectionFromSystem(system flow.SystemInput) collection.Collection {
	c, _ := system.Collection.(collection.Collection)
	return c
}

// rerankFromSystem recovers the RerankService SystemInput.Rerank carries,
// or nil if none is configured.
func rerankFromSystem(system flow.SystemInput) collection.RerankService {
	r, _ := system.Rerank.(collection.RerankService)
	return r
}

// completionFromSystem recovers the CompletionService SystemInput.Completion
// carries, or nil if none is configured.
func completionFromSystem(system flow.SystemInput) collection.CompletionService {
	c, _ := system.Completion.(collection.CompletionService)
	return c
}
