package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clarifyai/internal/core"
)

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the conversation tables if they don't exist.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`ALTER TABLE conversation_messages ADD COLUMN IF NOT EXISTS was_helpful BOOLEAN`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create conversation tables: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_conversations_owner_updated ON conversations(owner_id, updated_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages(conversation_id, position)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

func (s *PostgreSQLStore) Create(ctx context.Context, ownerID, title string) (*Conversation, error) {
	c := newConversation(ownerID, title)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, owner_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OwnerID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return c, nil
}

func (s *PostgreSQLStore) Get(ctx context.Context, id string) (*Conversation, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, owner_id, title, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	return &c, nil
}

func (s *PostgreSQLStore) List(ctx context.Context, ownerID string, limit int) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, owner_id, title, created_at, updated_at FROM conversations
		WHERE owner_id = $1 ORDER BY updated_at DESC, id LIMIT $2`, ownerID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]Conversation, 0)
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgreSQLStore) Rename(ctx context.Context, id, title string) (*Conversation, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $1, updated_at = $2 WHERE id = $3`, title, nowFunc(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete relies on ON DELETE CASCADE for the messages.
func (s *PostgreSQLStore) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgreSQLStore) AppendMessages(ctx context.Context, id string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	now := nowFunc()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Row lock serialises concurrent appends to the same conversation.
	var convID string
	err = tx.QueryRow(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2 RETURNING id::text`, now, id,
	).Scan(&convID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	var next int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM conversation_messages WHERE conversation_id = $1`, convID,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to read message position: %w", err)
	}

	batch := &pgx.Batch{}
	for i, m := range newMessages(msgs, now) {
		batch.Queue(
			`INSERT INTO conversation_messages (id, conversation_id, position, role, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, convID, next+i, m.Role, m.Content, m.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert messages: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgreSQLStore) Messages(ctx context.Context, id string) ([]Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, role, content, was_helpful, created_at FROM conversation_messages
		WHERE conversation_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.WasHelpful, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgreSQLStore) SetFeedback(ctx context.Context, id, messageID string, helpful bool) (*Message, error) {
	if uuid.Validate(id) != nil || uuid.Validate(messageID) != nil {
		return nil, ErrNotFound
	}

	var m Message
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, role, content, was_helpful, created_at FROM conversation_messages
		WHERE id = $1 AND conversation_id = $2`, messageID, id,
	).Scan(&m.ID, &m.Role, &m.Content, &m.WasHelpful, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if err := checkFeedbackTarget(m.Role); err != nil {
		return nil, err
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE conversation_messages SET was_helpful = $1 WHERE id = $2`, helpful, messageID,
	); err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}
	m.WasHelpful = &helpful
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

// Close is a no-op; the pool is managed by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}
