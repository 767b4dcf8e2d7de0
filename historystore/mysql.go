package historystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ragflow-go/ragflow/memory"
)

// MySQLHistory is a MySQL/MariaDB-backed memory.HistoryHandle, for
// production deployments that need conversation history to survive
// process restarts and be shared across worker processes.
//
// DSN format: user:password@tcp(host:port)/dbname?parseTime=true
type MySQLHistory struct {
	db             *sql.DB
	mu             sync.RWMutex
	conversationID string
}

// NewMySQLHistory opens a connection pool against dsn and scopes
// reads/writes to conversationID.
func NewMySQLHistory(dsn, conversationID string) (*MySQLHistory, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("historystore: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	h := &MySQLHistory{db: db, conversationID: conversationID}
	if err := h.createTable(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func (h *MySQLHistory) createTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS conversation_messages (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			conversation_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			role VARCHAR(32) NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_conversation_seq (conversation_id, seq),
			INDEX idx_conversation (conversation_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := h.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("historystore: create table: %w", err)
	}
	return nil
}

// Append persists one message, per memory.HistoryHandle.
func (h *MySQLHistory) Append(ctx context.Context, msg memory.ConversationMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("historystore: marshal message: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("historystore: begin tx: %w", err)
	}
	defer tx.Rollback()

	var nextSeq int
	row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), -1) + 1 FROM conversation_messages WHERE conversation_id = ? FOR UPDATE", h.conversationID)
	if err := row.Scan(&nextSeq); err != nil {
		return fmt.Errorf("historystore: compute next sequence: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversation_messages (conversation_id, seq, role, payload) VALUES (?, ?, ?, ?)",
		h.conversationID, nextSeq, msg.Role, string(payload),
	); err != nil {
		return fmt.Errorf("historystore: insert message: %w", err)
	}

	return tx.Commit()
}

// Messages returns every persisted message for this conversation in
// append order.
func (h *MySQLHistory) Messages(ctx context.Context) ([]memory.ConversationMessage, error) {
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

// Close releases the underlying connection pool.
func (h *MySQLHistory) Close() error {
	return h.db.Close()
}

var _ memory.HistoryHandle = (*MySQLHistory)(nil)
