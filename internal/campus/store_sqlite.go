package campus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the faqs and announcements tables if they don't exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS faqs (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			category TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_by TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			view_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS announcements (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			date TEXT NOT NULL,
			priority TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_by TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create campus tables: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_faqs_category ON faqs(category)",
		"CREATE INDEX IF NOT EXISTS idx_announcements_date ON announcements(date)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

const faqColumns = "id, question, answer, category, tags, is_active, created_by, created_at, updated_at, view_count"

func (s *SQLiteStore) ListFAQs(ctx context.Context, filter FAQFilter) ([]FAQ, error) {
	where := []string{"is_active = 1"}
	args := []any{}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		where = append(where, `(LOWER(question) LIKE ? ESCAPE '\' OR LOWER(answer) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	args = append(args, filter.Limit)

	query := "SELECT " + faqColumns + " FROM faqs WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list FAQs: %w", err)
	}
	defer rows.Close()

	out := make([]FAQ, 0)
	for rows.Next() {
		faq, err := scanSQLiteFAQ(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *faq)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetFAQ(ctx context.Context, id string) (*FAQ, error) {
	faq, err := scanSQLiteFAQ(s.db.QueryRowContext(ctx, "SELECT "+faqColumns+" FROM faqs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return faq, err
}

func (s *SQLiteStore) InsertFAQ(ctx context.Context, faq *FAQ) error {
	tags, err := json.Marshal(faq.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO faqs ("+faqColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		faq.ID, faq.Question, faq.Answer, faq.Category, string(tags), boolToInt(faq.IsActive), faq.CreatedBy,
		faq.CreatedAt.UTC().Format(sqliteTimeLayout), faq.UpdatedAt.UTC().Format(sqliteTimeLayout), faq.ViewCount)
	if err != nil {
		return fmt.Errorf("failed to insert FAQ: %w", err)
	}
	return nil
}

// ReplaceFAQ rewrites the editable columns; view_count is left to IncrementFAQViews.
func (s *SQLiteStore) ReplaceFAQ(ctx context.Context, faq *FAQ) error {
	tags, err := json.Marshal(faq.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE faqs SET question = ?, answer = ?, category = ?, tags = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		faq.Question, faq.Answer, faq.Category, string(tags), boolToInt(faq.IsActive),
		faq.UpdatedAt.UTC().Format(sqliteTimeLayout), faq.ID)
	if err != nil {
		return fmt.Errorf("failed to update FAQ: %w", err)
	}
	return affectedOne(res)
}

func (s *SQLiteStore) DeleteFAQ(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM faqs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete FAQ: %w", err)
	}
	return affectedOne(res)
}

func (s *SQLiteStore) IncrementFAQViews(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE faqs SET view_count = view_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to increment FAQ views: %w", err)
	}
	return affectedOne(res)
}

const announcementColumns = "id, title, description, category, date, priority, is_active, created_by, created_at, updated_at"

func (s *SQLiteStore) ListAnnouncements(ctx context.Context, filter AnnouncementFilter) ([]Announcement, error) {
	where := []string{"is_active = 1"}
	args := []any{}
	if filter.UpcomingOnly {
		where = append(where, "date >= ?")
		args = append(args, filter.Now.UTC().Format(sqliteTimeLayout))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	args = append(args, filter.Limit)

	query := "SELECT " + announcementColumns + " FROM announcements WHERE " + strings.Join(where, " AND ") +
		" ORDER BY date ASC, id LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	out := make([]Announcement, 0)
	for rows.Next() {
		a, err := scanSQLiteAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAnnouncement(ctx context.Context, id string) (*Announcement, error) {
	a, err := scanSQLiteAnnouncement(s.db.QueryRowContext(ctx,
		"SELECT "+announcementColumns+" FROM announcements WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *SQLiteStore) InsertAnnouncement(ctx context.Context, a *Announcement) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO announcements ("+announcementColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.Title, a.Description, a.Category, a.Date.UTC().Format(sqliteTimeLayout), a.Priority,
		boolToInt(a.IsActive), a.CreatedBy,
		a.CreatedAt.UTC().Format(sqliteTimeLayout), a.UpdatedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceAnnouncement(ctx context.Context, a *Announcement) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET title = ?, description = ?, category = ?, date = ?, priority = ?,
		is_active = ?, updated_at = ? WHERE id = ?`,
		a.Title, a.Description, a.Category, a.Date.UTC().Format(sqliteTimeLayout), a.Priority,
		boolToInt(a.IsActive), a.UpdatedAt.UTC().Format(sqliteTimeLayout), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return affectedOne(res)
}

func (s *SQLiteStore) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM faqs) + (SELECT COUNT(*) FROM announcements)").Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count campus content: %w", err)
	}
	return n == 0, nil
}

// Close is a no-op; the database is managed by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteFAQ(row rowScanner) (*FAQ, error) {
	var (
		faq                  FAQ
		tags                 string
		active               int
		createdBy            sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&faq.ID, &faq.Question, &faq.Answer, &faq.Category, &tags, &active,
		&createdBy, &createdAt, &updatedAt, &faq.ViewCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan FAQ: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &faq.Tags); err != nil {
		slog.Warn("invalid tags column", "faq_id", faq.ID, "error", err)
	}
	if faq.Tags == nil {
		faq.Tags = []string{}
	}
	faq.IsActive = active != 0
	faq.CreatedBy = createdBy.String
	faq.CreatedAt = parseSQLiteTime(createdAt)
	faq.UpdatedAt = parseSQLiteTime(updatedAt)
	return &faq, nil
}

func scanSQLiteAnnouncement(row rowScanner) (*Announcement, error) {
	var (
		a                          Announcement
		active                     int
		createdBy                  sql.NullString
		date, createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &date, &a.Priority, &active,
		&createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan announcement: %w", err)
	}
	a.IsActive = active != 0
	a.CreatedBy = createdBy.String
	a.Date = parseSQLiteTime(date)
	a.CreatedAt = parseSQLiteTime(createdAt)
	a.UpdatedAt = parseSQLiteTime(updatedAt)
	return &a, nil
}

func parseSQLiteTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		slog.Warn("unparseable timestamp in campus store", "value", s, "error", err)
		return time.Time{}
	}
	return t
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
