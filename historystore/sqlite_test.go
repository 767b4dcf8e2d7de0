package historystore

import (
	"context"
	"testing"

	"github.com/ragflow-go/ragflow/memory"
)

func newTestSQLiteHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := NewSQLiteHistory(":memory:", "conv-1")
	if err != nil {
		t.Fatalf("NewSQLiteHistory failed: %v", err)
	}
	return h
}

func TestSQLiteHistory_AppendAndMessages(t *testing.T) {
	ctx := context.Background()
	h := newTestSQLiteHistory(t)
	defer h.Close()

	if err := h.Append(ctx, memory.ConversationMessage{ID: "m1", Role: "human", Query: "hi"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := h.Append(ctx, memory.ConversationMessage{ID: "m2", Role: "ai", Response: "hello"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := h.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("expected append order preserved, got %+v", got)
	}
	if got[1].Response != "hello" {
		t.Errorf("expected response round-tripped through JSON, got %q", got[1].Response)
	}
}

func TestSQLiteHistory_ScopedByConversation(t *testing.T) {
	ctx := context.Background()
	h1, err := NewSQLiteHistory(":memory:", "conv-a")
	if err != nil {
		t.Fatalf("NewSQLiteHistory failed: %v", err)
	}
	defer h1.Close()

	_ = h1.Append(ctx, memory.ConversationMessage{ID: "only-in-a"})

	got, err := h1.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "only-in-a" {
		t.Errorf("expected scoped messages, got %+v", got)
	}
}
