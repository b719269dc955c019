package campus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the faqs and announcements tables if they don't exist.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS faqs (
			id UUID PRIMARY KEY,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			category TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			view_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS announcements (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			priority TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create campus tables: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_faqs_category ON faqs(category)",
		"CREATE INDEX IF NOT EXISTS idx_announcements_date ON announcements(date)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

const pgFAQColumns = "id::text, question, answer, category, tags, is_active, COALESCE(created_by, ''), created_at, updated_at, view_count"

func (s *PostgreSQLStore) ListFAQs(ctx context.Context, filter FAQFilter) ([]FAQ, error) {
	where := []string{"is_active"}
	args := []any{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(question ILIKE $%[1]d OR answer ILIKE $%[1]d OR array_to_string(tags, ' ') ILIKE $%[1]d)", n))
	}
	args = append(args, filter.Limit)

	query := fmt.Sprintf("SELECT %s FROM faqs WHERE %s ORDER BY created_at DESC, id LIMIT $%d",
		pgFAQColumns, strings.Join(where, " AND "), len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list FAQs: %w", err)
	}
	defer rows.Close()

	out := make([]FAQ, 0)
	for rows.Next() {
		faq, err := scanPgFAQ(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *faq)
	}
	return out, rows.Err()
}

func (s *PostgreSQLStore) GetFAQ(ctx context.Context, id string) (*FAQ, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	faq, err := scanPgFAQ(s.pool.QueryRow(ctx, "SELECT "+pgFAQColumns+" FROM faqs WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return faq, err
}

func (s *PostgreSQLStore) InsertFAQ(ctx context.Context, faq *FAQ) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO faqs (id, question, answer, category, tags, is_active, created_by, created_at, updated_at, view_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		faq.ID, faq.Question, faq.Answer, faq.Category, faq.Tags, faq.IsActive, faq.CreatedBy,
		faq.CreatedAt, faq.UpdatedAt, faq.ViewCount)
	if err != nil {
		return fmt.Errorf("failed to insert FAQ: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) ReplaceFAQ(ctx context.Context, faq *FAQ) error {
	if uuid.Validate(faq.ID) != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE faqs SET question = $1, answer = $2, category = $3, tags = $4, is_active = $5, updated_at = $6
		WHERE id = $7`,
		faq.Question, faq.Answer, faq.Category, faq.Tags, faq.IsActive, faq.UpdatedAt, faq.ID)
	if err != nil {
		return fmt.Errorf("failed to update FAQ: %w", err)
	}
	return pgAffectedOne(tag)
}

func (s *PostgreSQLStore) DeleteFAQ(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM faqs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete FAQ: %w", err)
	}
	return pgAffectedOne(tag)
}

func (s *PostgreSQLStore) IncrementFAQViews(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, "UPDATE faqs SET view_count = view_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment FAQ views: %w", err)
	}
	return pgAffectedOne(tag)
}

const pgAnnouncementColumns = "id::text, title, description, category, date, priority, is_active, COALESCE(created_by, ''), created_at, updated_at"

func (s *PostgreSQLStore) ListAnnouncements(ctx context.Context, filter AnnouncementFilter) ([]Announcement, error) {
	where := []string{"is_active"}
	args := []any{}
	if filter.UpcomingOnly {
		args = append(args, filter.Now)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	args = append(args, filter.Limit)

	query := fmt.Sprintf("SELECT %s FROM announcements WHERE %s ORDER BY date ASC, id LIMIT $%d",
		pgAnnouncementColumns, strings.Join(where, " AND "), len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	out := make([]Announcement, 0)
	for rows.Next() {
		a, err := scanPgAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgreSQLStore) GetAnnouncement(ctx context.Context, id string) (*Announcement, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrNotFound
	}
	a, err := scanPgAnnouncement(s.pool.QueryRow(ctx,
		"SELECT "+pgAnnouncementColumns+" FROM announcements WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *PostgreSQLStore) InsertAnnouncement(ctx context.Context, a *Announcement) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO announcements (id, title, description, category, date, priority, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Title, a.Description, a.Category, a.Date, a.Priority, a.IsActive, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) ReplaceAnnouncement(ctx context.Context, a *Announcement) error {
	if uuid.Validate(a.ID) != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE announcements SET title = $1, description = $2, category = $3, date = $4, priority = $5,
		is_active = $6, updated_at = $7 WHERE id = $8`,
		a.Title, a.Description, a.Category, a.Date, a.Priority, a.IsActive, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return pgAffectedOne(tag)
}

func (s *PostgreSQLStore) IsEmpty(ctx context.Context) (bool, error) {
	var empty bool
	err := s.pool.QueryRow(ctx,
		"SELECT NOT EXISTS (SELECT 1 FROM faqs) AND NOT EXISTS (SELECT 1 FROM announcements)").Scan(&empty)
	if err != nil {
		return false, fmt.Errorf("failed to count campus content: %w", err)
	}
	return empty, nil
}

// Close is a no-op; the pool is managed by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}

func scanPgFAQ(row pgx.Row) (*FAQ, error) {
	var faq FAQ
	err := row.Scan(&faq.ID, &faq.Question, &faq.Answer, &faq.Category, &faq.Tags, &faq.IsActive,
		&faq.CreatedBy, &faq.CreatedAt, &faq.UpdatedAt, &faq.ViewCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan FAQ: %w", err)
	}
	if faq.Tags == nil {
		faq.Tags = []string{}
	}
	faq.CreatedAt, faq.UpdatedAt = faq.CreatedAt.UTC(), faq.UpdatedAt.UTC()
	return &faq, nil
}

func scanPgAnnouncement(row pgx.Row) (*Announcement, error) {
	var a Announcement
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &a.Date, &a.Priority, &a.IsActive,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan announcement: %w", err)
	}
	a.Date, a.CreatedAt, a.UpdatedAt = a.Date.UTC(), a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	return &a, nil
}

func pgAffectedOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
