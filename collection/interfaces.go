package collection

import (
	"context"

	"github.com/ragflow-go/ragflow/flow"
	"github.com/ragflow-go/ragflow/retrieval"
)

// VectorStore is the nearest-neighbour backend vector_search and summary_search
// query, and the ingestion path writes to.
type VectorStore interface {
	Search(ctx context.Context, collection string, vector []float32, topK int, scoreThreshold float64, filter Filter) ([]retrieval.Document, error)
	Add(ctx context.Context, collection string, nodes []VectorNode) ([]string, error)
	Delete(ctx context.Context, collection string, filter Filter) error
}

// FullTextIndex is the inverted-index backend keyword_search queries and the
// keyword-intersection filter consults.
type FullTextIndex interface {
	Exists(ctx context.Context, index string) (bool, error)
	Analyze(ctx context.Context, index, text, analyzer string) ([]string, error)
	Search(ctx context.Context, index string, should []MatchClause, minimumShouldMatch float64, size int) ([]Hit, error)
	IndexDoc(ctx context.Context, index, id, name, content string) error
	DeleteDoc(ctx context.Context, index, id string) error
}

// GraphStore is the knowledge-graph backend graph_search queries.
type GraphStore interface {
	Query(ctx context.Context, text string, mode GraphMode, topK int, contextOnly bool) (string, error)
}

// EmbeddingService embeds query and document text. EmbedDocuments must
// preserve input order in its result, even when an implementation batches
// or parallelizes internally.
type EmbeddingService interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionService streams a completion. The returned channel is closed
// when the provider reaches a terminal finish_reason or ctx is cancelled;
// tool/function-call metadata, when a provider supports it, travels on
// Token.Err-free entries carrying structured text rather than a separate
// channel, keeping the single ordered token sequence spec.md §5 requires.
type CompletionService interface {
	GenerateStream(ctx context.Context, history []Message, prompt string, memory Memory) (<-chan flow.Token, error)
}

// RerankService scores (query, texts) and returns a permutation of indices
// into texts, best match first.
type RerankService interface {
	Rank(ctx context.Context, query string, texts []string) ([]int, error)
}

// Collection bundles the capability handles a node runner needs for one
// knowledge collection, avoiding the circular vector-store/embedding-service
// dependency a direct wiring would introduce: runners receive a Collection
// through SystemInput rather than constructing their own clients.
type Collection struct {
	ID       string
	Embedding EmbeddingService
	Vectors  VectorStore
	FullText FullTextIndex
	Graph    GraphStore // nil when the knowledge-graph capability is disabled

	IndexerField string // metadata field name used to distinguish chunk vs summary rows
}

// HasGraph reports whether this collection has a knowledge-graph backend
// configured; graph_search returns [] without querying anything when this
// is false.
func (c Collection) HasGraph() bool {
	return c.Graph != nil
}
