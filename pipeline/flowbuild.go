package pipeline

import (
	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
	"github.com/ragflow-go/ragflow/retrieval/runners"
)

// retrievalPlan is a retrieval flow instance together with the node IDs
// whose "docs" output hold each branch's final result, since a flow
// instance alone does not name which of its nodes is the one the caller
// should read back out (spec.md leaves flow-instance authoring to whoever
// builds one; the pipeline's own builder fixes this convention).
type retrievalPlan struct {
	Flow        *flow.FlowInstance
	ClassicNode string // "" if this plan has no classic (vector+rerank) branch
	GraphNode   string // "" if this plan has no graph branch
}

// buildRetrievalFlow constructs the classic/graph/mix retrieval portion of
// a turn (spec.md §4.9 step 3), stopping short of the llm node: the
// pipeline composes the final prompt context itself once every branch
// (including, for mix, both) has resolved, so it can apply the labelled
// KG/DC section formatting and the mix fallback rules before a single
// completion flow ever runs. summary_search is not part of any built-in
// mode; it remains available to a hand-authored flow instance driven
// outside the pipeline. The optional keyword-intersection filter (spec.md
// §4.6.3) is not a flow node: it runs in retrieve, after this flow's rerank
// output comes back, matching _run_classic_rag's post-rerank filter step.
func buildRetrievalFlow(mode RetrieveMode, cfg BotConfig, policy retrieval.Policy) retrievalPlan {
	nodes := map[string]*flow.NodeInstance{
		"start": {ID: "start", TypeKey: runners.TypeStart},
	}
	plan := retrievalPlan{}

	wantClassic := mode == RetrieveClassic || mode == RetrieveMix
	wantGraph := mode == RetrieveGraph || mode == RetrieveMix

	topK := cfg.topK()

	if wantClassic {
		oversampled := topK * policy.RerankOversample
		nodes["vector_search"] = &flow.NodeInstance{
			ID:      "vector_search",
			TypeKey: runners.TypeVectorSearch,
			InputBindings: []flow.InputBinding{
				flow.Dynamic("query", "start", "query"),
				flow.Static("top_k", oversampled),
				flow.Static("similarity_threshold", cfg.ScoreThreshold),
				flow.Static("collection_ids", cfg.CollectionIDs),
			},
		}

		mergeBindings := []flow.InputBinding{
			flow.Static("merge_strategy", "union"),
			flow.Static("deduplicate", true),
			flow.Dynamic("vector_search_docs", "vector_search", "docs"),
		}

		nodes["merge"] = &flow.NodeInstance{ID: "merge", TypeKey: runners.TypeMerge, InputBindings: mergeBindings}
		nodes["rerank"] = &flow.NodeInstance{
			ID:      "rerank",
			TypeKey: runners.TypeRerank,
			InputBindings: []flow.InputBinding{
				flow.Dynamic("docs", "merge", "docs"),
				flow.Static("top_k", topK),
			},
		}
		plan.ClassicNode = "rerank"
	}

	if wantGraph {
		nodes["graph_search"] = &flow.NodeInstance{
			ID:      "graph_search",
			TypeKey: runners.TypeGraphSearch,
			InputBindings: []flow.InputBinding{
				flow.Static("top_k", topK),
				flow.Static("collection_ids", cfg.CollectionIDs),
			},
		}
		plan.GraphNode = "graph_search"
	}

	plan.Flow = &flow.FlowInstance{ID: "retrieval-" + string(mode), Name: "retrieval-" + string(mode), Nodes: nodes}
	return plan
}

// buildCompletionFlow constructs the single-node completion flow every
// mode funnels into once its context documents are assembled. docs arrives
// as a Global so it bypasses the Static-binding type whitelist (Bind's
// Global path trusts the caller, matching how Static already trusts a
// declared FieldDefinition's type): the pipeline, not a prior node in this
// flow, produced the final []retrieval.Document slice.
func buildCompletionFlow(cfg BotConfig) *flow.FlowInstance {
	nodes := map[string]*flow.NodeInstance{
		"start": {ID: "start", TypeKey: runners.TypeStart},
		"llm": {
			ID:      "llm",
			TypeKey: runners.TypeCompletion,
			InputBindings: []flow.InputBinding{
				flow.Static("model_service_provider", cfg.Completion.Provider),
				flow.Static("model_name", cfg.Completion.Model),
				flow.Static("prompt_template", cfg.Completion.PromptTemplate),
				flow.Static("temperature", cfg.Completion.Temperature),
				flow.Static("max_tokens", cfg.Completion.MaxTokens),
				flow.Static("context_window", cfg.Completion.ContextWindow),
				flow.Global("docs", "docs"),
			},
		},
	}
	return &flow.FlowInstance{
		ID:   "completion",
		Name: "completion",
		Nodes: nodes,
		Globals: map[string]flow.GlobalVariable{
			"docs": {Name: "docs", Type: flow.FieldTypeArray},
		},
	}
}
