package memory

import (
	"context"
	"sync"
)

// InMemoryHistory is a HistoryHandle backed by a process-local slice,
// suitable for tests and single-process deployments. Production use should
// prefer a historystore-backed handle for durability across restarts.
type InMemoryHistory struct {
	mu       sync.Mutex
	messages []ConversationMessage
}

// NewInMemoryHistory returns an empty history.
func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{}
}

func (h *InMemoryHistory) Append(ctx context.Context, msg ConversationMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return nil
}

func (h *InMemoryHistory) Messages(ctx context.Context) ([]ConversationMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ConversationMessage, len(h.messages))
	copy(out, h.messages)
	return out, nil
}
