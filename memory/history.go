// Package memory implements conversation history persistence: the
// HistoryHandle contract every pipeline turn appends to and reads from
// (spec.md §6 "Conversation history").
package memory

import "context"

// Provenance records the retrieval and generation configuration that
// produced an AI message, so a later audit can explain why an answer looked
// the way it did (spec.md §4.9 step 6).
type Provenance struct {
	CollectionID    string
	EmbeddingModel  string
	VectorDimension int
	TopK            int
	ScoreThreshold  float64
	CompletionModel string
	PromptTemplate  string
	ContextWindow   int
}

// ConversationMessage is one turn's worth of state: either a human message
// (Query set, Response/References/URLs empty) or an AI message (all
// fields set). Role is a sideband attribute, not embedded in the
// serialized value, per spec.md §6.
type ConversationMessage struct {
	ID         string
	Role       string // "human" or "ai"
	Query      string
	Response   string
	References []string
	URLs       []string
	Timestamp  int64
	Provenance Provenance
}

// HistoryHandle is the append/read contract spec.md §6 specifies for
// conversation history. Implementations must preserve append order.
type HistoryHandle interface {
	Append(ctx context.Context, msg ConversationMessage) error
	Messages(ctx context.Context) ([]ConversationMessage, error)
}
