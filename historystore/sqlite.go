// Package historystore provides durable HistoryHandle implementations,
// adapting the teacher's generic checkpoint-store pattern
// (database/sql + modernc.org/sqlite or go-sql-driver/mysql) to
// append-only conversation message persistence (spec.md §6, §4.9 step 6).
package historystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ragflow-go/ragflow/memory"
)

// SQLiteHistory is a sqlite-backed memory.HistoryHandle, one per
// conversation. Designed for development, single-process deployments, and
// tests that need persistence across process restarts without an external
// database.
type SQLiteHistory struct {
	db             *sql.DB
	mu             sync.RWMutex
	conversationID string
}

// NewSQLiteHistory opens (creating if absent) a sqlite database at path and
// scopes reads/writes to conversationID. Pass ":memory:" for a
// process-local database that does not survive process exit.
func NewSQLiteHistory(path, conversationID string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("historystore: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("historystore: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("historystore: set busy_timeout: %w", err)
	}

	h := &SQLiteHistory{db: db, conversationID: conversationID}
	if err := h.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *SQLiteHistory) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS conversation_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(conversation_id, seq)
		)
	`
	if _, err := h.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("historystore: create table: %w", err)
	}
	if _, err := h.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages(conversation_id, seq)"); err != nil {
		return fmt.Errorf("historystore: create index: %w", err)
	}
	return nil
}

// Append persists one message. The message's role travels as a sideband
// column; the rest of the message is serialized as a JSON value, per
// spec.md §6 ("Messages are serialized as JSON on the value side; role is
// a sideband attribute").
func (h *SQLiteHistory) Append(ctx context.Context, msg memory.ConversationMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("historystore: marshal message: %w", err)
	}

	var nextSeq int
	row := h.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), -1) + 1 FROM conversation_messages WHERE conversation_id = ?", h.conversationID)
	if err := row.Scan(&nextSeq); err != nil {
		return fmt.Errorf("historystore: compute next sequence: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		"INSERT INTO conversation_messages (conversation_id, seq, role, payload) VALUES (?, ?, ?, ?)",
		h.conversationID, nextSeq, msg.Role, string(payload),
	)
	if err != nil {
		return fmt.Errorf("historystore: insert message: %w", err)
	}
	return nil
}

// Messages returns every persisted message for this conversation in
// append order.
func (h *SQLiteHistory) Messages(ctx context.Context) ([]memory.ConversationMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rows, err := h.db.QueryContext(ctx,
		"SELECT payload FROM conversation_messages WHERE conversation_id = ? ORDER BY seq ASC",
		h.conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("historystore: query messages: %w", err)
	}
	defer rows.Close()

	var out []memory.ConversationMessage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("historystore: scan message: %w", err)
		}
		var msg memory.ConversationMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("historystore: unmarshal message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("historystore: iterate messages: %w", err)
	}
	return out, nil
}

// Close releases the underlying database connection.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

var _ memory.HistoryHandle = (*SQLiteHistory)(nil)
