package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a local sqlite cache of conversations, messages, and artifacts.
// The server remains the system of record; this cache makes replay work
// across restarts and offline. Commands run off the main goroutine, so the
// mutex stays.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

type Conversation struct {
	ID        string
	Title     string
	UpdatedTS int64
}

type Message struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	CreatedTS      int64
}

type Artifact struct {
	MessageID      int64
	ConversationID string
	SQLText        string
	ColumnsJSON    string
	RowsJSON       string
	ChartJSON      string
	AnalysisText   string
	UpdatedTS      int64
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT,
			updated_ts INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			conversation_id TEXT,
			role TEXT,
			content TEXT,
			created_ts INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			message_id INTEGER PRIMARY KEY,
			conversation_id TEXT,
			sql_text TEXT,
			columns_json TEXT,
			rows_json TEXT,
			chart_json TEXT,
			analysis_text TEXT,
			updated_ts INTEGER
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertConversation(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations(id, title, updated_ts)
		VALUES(?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=CASE WHEN excluded.title != '' THEN excluded.title ELSE conversations.title END,
			updated_ts=excluded.updated_ts
	`, id, title, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert conversation %s: %w", id, err)
	}
	return nil
}

func (s *Store) Conversations(ctx context.Context) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(title, ''), COALESCE(updated_ts, 0)
		FROM conversations
		ORDER BY updated_ts DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]Conversation, 0, 32)
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.UpdatedTS); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}

// ReplaceMessages swaps a conversation's cached message list for the fetched
// one in a single transaction.
func (s *Store) ReplaceMessages(ctx context.Context, conversationID string, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message replace tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear cached messages for %s: %w", conversationID, err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO messages(id, conversation_id, role, content, created_ts)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role=excluded.role,
			content=excluded.content
	`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer insert.Close()

	for _, m := range msgs {
		ts := m.CreatedTS
		if ts == 0 {
			ts = time.Now().Unix()
		}
		if _, err := insert.ExecContext(ctx, m.ID, conversationID, m.Role, m.Content, ts); err != nil {
			return fmt.Errorf("insert message %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message replace for %s: %w", conversationID, err)
	}
	return nil
}

func (s *Store) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, COALESCE(role, ''), COALESCE(content, ''), COALESCE(created_ts, 0)
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query cached messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 64)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedTS); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// SaveArtifact upserts the artifact for a message. Last write wins.
func (s *Store) SaveArtifact(ctx context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts(message_id, conversation_id, sql_text, columns_json, rows_json, chart_json, analysis_text, updated_ts)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			conversation_id=excluded.conversation_id,
			sql_text=excluded.sql_text,
			columns_json=excluded.columns_json,
			rows_json=excluded.rows_json,
			chart_json=excluded.chart_json,
			analysis_text=excluded.analysis_text,
			updated_ts=excluded.updated_ts
	`, a.MessageID, a.ConversationID, a.SQLText, a.ColumnsJSON, a.RowsJSON, a.ChartJSON, a.AnalysisText, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save artifact for message %d: %w", a.MessageID, err)
	}
	return nil
}

// Artifact loads the cached artifact for a message.
func (s *Store) Artifact(ctx context.Context, messageID int64) (Artifact, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a Artifact
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, conversation_id, COALESCE(sql_text, ''), COALESCE(columns_json, ''),
			COALESCE(rows_json, ''), COALESCE(chart_json, ''), COALESCE(analysis_text, ''), COALESCE(updated_ts, 0)
		FROM artifacts
		WHERE message_id = ?
	`, messageID).Scan(&a.MessageID, &a.ConversationID, &a.SQLText, &a.ColumnsJSON, &a.RowsJSON, &a.ChartJSON, &a.AnalysisText, &a.UpdatedTS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, false, nil
		}
		return Artifact{}, false, fmt.Errorf("load artifact for message %d: %w", messageID, err)
	}
	return a, true, nil
}

// Artifacts loads every cached artifact for a conversation keyed by message.
func (s *Store) Artifacts(ctx context.Context, conversationID string) (map[int64]Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, conversation_id, COALESCE(sql_text, ''), COALESCE(columns_json, ''),
			COALESCE(rows_json, ''), COALESCE(chart_json, ''), COALESCE(analysis_text, ''), COALESCE(updated_ts, 0)
		FROM artifacts
		WHERE conversation_id = ?
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts for %s: %w", conversationID, err)
	}
	defer rows.Close()

	out := make(map[int64]Artifact)
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.MessageID, &a.ConversationID, &a.SQLText, &a.ColumnsJSON, &a.RowsJSON, &a.ChartJSON, &a.AnalysisText, &a.UpdatedTS); err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		out[a.MessageID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}
