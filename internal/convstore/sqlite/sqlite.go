// Package sqlite implements the durable conversation store on SQLite
// via modernc.org/sqlite (pure Go, no cgo). It is the default local
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chatforge/chatforge/internal/convstore"
	"github.com/chatforge/chatforge/internal/model"
)

const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
    conversation_id TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    title           TEXT NOT NULL,
    messages        TEXT NOT NULL DEFAULT '[]',
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user_updated
    ON conversations (user_id, updated_at DESC);
`

// Open opens (or creates) a SQLite database at the given path and
// enables WAL journal mode for better read concurrency.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// New constructs a sqlite-backed conversation store.
func New(db *sql.DB) convstore.Store { return &sqliteStore{db: db} }

type sqliteStore struct {
	db *sql.DB

	schemaReady bool
}

func (s *sqliteStore) ValidID(id string) bool { return convstore.ValidUUID(id) }

func (s *sqliteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	if !s.schemaReady {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		s.schemaReady = true
	}
	return nil
}

func (s *sqliteStore) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	out := *c
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now
	msgs, err := json.Marshal(out.Messages)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO conversations (conversation_id, user_id, title, messages, created_at, updated_at)
        VALUES (?,?,?,?,?,?)
    `, out.ID, out.UserID, out.Title, string(msgs), now, now)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *sqliteStore) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var (
		out  model.Conversation
		msgs string
	)
	row := s.db.QueryRowContext(ctx, `
        SELECT conversation_id, user_id, title, messages, created_at, updated_at
        FROM conversations WHERE conversation_id=?
    `, id)
	if err := row.Scan(&out.ID, &out.UserID, &out.Title, &msgs, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(msgs), &out.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return &out, nil
}

// AppendMessage reads, mutates and rewrites the message array inside a
// transaction. SQLite serializes writers, so the read-modify-write is
// safe within one process.
func (s *sqliteStore) AppendMessage(ctx context.Context, id string, m model.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var msgs string
	row := tx.QueryRowContext(ctx, `SELECT messages FROM conversations WHERE conversation_id=?`, id)
	if err := row.Scan(&msgs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return err
	}
	var list []model.Message
	if err := json.Unmarshal([]byte(msgs), &list); err != nil {
		return fmt.Errorf("decode messages: %w", err)
	}
	list = append(list, m)
	updated, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE conversations SET messages=?, updated_at=? WHERE conversation_id=?
    `, string(updated), time.Now().UTC(), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Rename(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE conversations SET title=?, updated_at=? WHERE conversation_id=?
    `, title, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id=?`, id)
	return err
}

func (s *sqliteStore) ListByUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT conversation_id, title, updated_at
        FROM conversations WHERE user_id=?
        ORDER BY updated_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.ConversationSummary
	for rows.Next() {
		var s model.ConversationSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
