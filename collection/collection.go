// Package collection defines the external-service contracts every retrieval
// and completion node runner depends on (spec.md §6): vector search,
// full-text search, the knowledge-graph backend, embedding, completion, and
// rerank, plus the thin Collection bundle that threads them through system
// input without the circular vector-store/embedding-service dependency a
// naive design would introduce (spec.md §9 Design Notes).
package collection

// Filter is the disjunction-of-equality grammar spec.md §6 specifies for
// vector-store search: a document matches if any MatchAny entry equals its
// named metadata field, or if RequireEmpty names a field that must be
// absent/empty.
type Filter struct {
	MatchAny     []FilterClause
	RequireEmpty string
}

// FilterClause is one equality test against a metadata field, typically
// the "indexer" field distinguishing chunk from summary rows.
type FilterClause struct {
	Field string
	Value string
}

// IsZero reports whether f carries no constraints at all, in which case a
// VectorStore implementation should search unfiltered.
func (f Filter) IsZero() bool {
	return len(f.MatchAny) == 0 && f.RequireEmpty == ""
}

// VectorNode is one embedding plus its payload, the unit Add persists.
type VectorNode struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// MatchClause is one should-clause in a full-text boolean query: match
// Keyword against Field.
type MatchClause struct {
	Field   string
	Keyword string
}

// Hit is one full-text search result.
type Hit struct {
	ID       string
	Name     string
	Content  string
	Score    float64
	Metadata map[string]any
}

// GraphMode selects the knowledge-graph query strategy.
type GraphMode string

const (
	GraphModeHybrid GraphMode = "hybrid"
	GraphModeLocal  GraphMode = "local"
	GraphModeGlobal GraphMode = "global"
	GraphModeGraph  GraphMode = "graph"
)

// Message is one turn in a conversation, passed to CompletionService as
// prior context.
type Message struct {
	Role    string
	Content string
}

// Memory carries the bounded conversation-history slice a completion call
// conditions on, already capped by count and length per spec.md §4.9 step 1.
type Memory struct {
	Messages []Message
}
