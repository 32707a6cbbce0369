// Package postgres implements the durable conversation store on
// PostgreSQL via the pgx stdlib driver. Messages are stored as a jsonb
// array so an append is a single UPDATE.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chatforge/chatforge/internal/convstore"
	"github.com/chatforge/chatforge/internal/model"
)

const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
    conversation_id UUID PRIMARY KEY,
    user_id         TEXT NOT NULL,
    title           TEXT NOT NULL,
    messages        JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversations_user_updated
    ON conversations (user_id, updated_at DESC);
`

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// applies the schema. Connectivity itself is verified lazily via Ping
// so the service can start while the database is unreachable.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// New constructs a postgres-backed conversation store.
func New(db *sql.DB) convstore.Store { return &pgStore{db: db} }

type pgStore struct {
	db *sql.DB

	schemaReady bool
}

func (s *pgStore) ValidID(id string) bool { return convstore.ValidUUID(id) }

func (s *pgStore) Ping(ctx context.Context) error {
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

func (s *pgStore) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	out := *c
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	msgs, err := json.Marshal(out.Messages)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
        INSERT INTO conversations (conversation_id, user_id, title, messages)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at, updated_at
    `, out.ID, out.UserID, out.Title, msgs)
	if err := row.Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *pgStore) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var (
		out  model.Conversation
		msgs []byte
	)
	row := s.db.QueryRowContext(ctx, `
        SELECT conversation_id, user_id, title, messages, created_at, updated_at
        FROM conversations WHERE conversation_id=$1
    `, id)
	if err := row.Scan(&out.ID, &out.UserID, &out.Title, &msgs, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(msgs, &out.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return &out, nil
}

func (s *pgStore) AppendMessage(ctx context.Context, id string, m model.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	one, err := json.Marshal(m)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE conversations
        SET messages = messages || $2::jsonb, updated_at = now()
        WHERE conversation_id = $1
    `, id, one)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgStore) Rename(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE conversations SET title=$2, updated_at=now() WHERE conversation_id=$1
    `, id, title)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE conversation_id=$1`, id)
	return err
}

func (s *pgStore) ListByUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT conversation_id, title, updated_at
        FROM conversations WHERE user_id=$1
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

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
