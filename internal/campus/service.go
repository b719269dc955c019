package campus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clarifyai/internal/core"
)

// ErrNotFound is returned by stores when an id does not exist.
var ErrNotFound = errors.New("not found")

// SystemActor owns the default seed content.
const SystemActor = "system"

// Store persists campus content. Validation and authorization live in Service.
// Implementations must be safe for concurrent use.
type Store interface {
	ListFAQs(ctx context.Context, filter FAQFilter) ([]FAQ, error)
	GetFAQ(ctx context.Context, id string) (*FAQ, error)
	InsertFAQ(ctx context.Context, faq *FAQ) error
	ReplaceFAQ(ctx context.Context, faq *FAQ) error
	DeleteFAQ(ctx context.Context, id string) error
	IncrementFAQViews(ctx context.Context, id string) error

	ListAnnouncements(ctx context.Context, filter AnnouncementFilter) ([]Announcement, error)
	GetAnnouncement(ctx context.Context, id string) (*Announcement, error)
	InsertAnnouncement(ctx context.Context, a *Announcement) error
	ReplaceAnnouncement(ctx context.Context, a *Announcement) error

	// IsEmpty reports whether both collections hold no rows at all.
	IsEmpty(ctx context.Context) (bool, error)

	Close() error
}

// Actor is the caller on whose behalf a write happens.
type Actor struct {
	ID    string
	Admin bool
}

// Service applies validation, authorization and defaults on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService wraps store.
func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Seed inserts the default FAQs and announcement when the store is empty.
func (s *Service) Seed(ctx context.Context) error {
	empty, err := s.store.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect campus store: %w", err)
	}
	if !empty {
		return nil
	}

	now := s.now()
	for _, in := range defaultFAQs() {
		if _, err := s.createFAQ(ctx, in, SystemActor, now); err != nil {
			return fmt.Errorf("failed to seed FAQ: %w", err)
		}
	}
	for _, in := range defaultAnnouncements(now) {
		if _, err := s.createAnnouncement(ctx, in, SystemActor, now); err != nil {
			return fmt.Errorf("failed to seed announcement: %w", err)
		}
	}
	slog.Info("seeded default campus content")
	return nil
}

// ListFAQs returns active FAQs, newest first.
func (s *Service) ListFAQs(ctx context.Context, filter FAQFilter) ([]FAQ, error) {
	limit, err := clampLimit(filter.Limit, DefaultFAQLimit, MaxFAQLimit)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	filter.Search = strings.ToLower(strings.TrimSpace(filter.Search))
	if filter.Category != "" {
		if err := checkEnum("category", filter.Category, FAQCategories); err != nil {
			return nil, err
		}
	}
	return s.store.ListFAQs(ctx, filter)
}

// ViewFAQ returns the FAQ and counts the view. A failed increment is logged, not returned.
func (s *Service) ViewFAQ(ctx context.Context, id string) (*FAQ, error) {
	faq, err := s.getFAQ(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.IncrementFAQViews(ctx, id); err != nil {
		slog.Warn("failed to increment FAQ views", "id", id, "error", err)
	}
	return faq, nil
}

// CreateFAQ requires an admin actor.
func (s *Service) CreateFAQ(ctx context.Context, actor Actor, in FAQInput) (*FAQ, error) {
	if !actor.Admin {
		return nil, core.NewForbiddenError("only administrators can manage FAQs")
	}
	return s.createFAQ(ctx, in, actor.ID, s.now())
}

func (s *Service) createFAQ(ctx context.Context, in FAQInput, createdBy string, now time.Time) (*FAQ, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	faq := &FAQ{
		ID:        uuid.NewString(),
		Question:  in.Question,
		Answer:    in.Answer,
		Category:  in.Category,
		Tags:      in.Tags,
		IsActive:  active,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertFAQ(ctx, faq); err != nil {
		return nil, fmt.Errorf("failed to create FAQ: %w", err)
	}
	return faq, nil
}

// UpdateFAQ applies a partial update. It requires an admin actor and at least one field.
func (s *Service) UpdateFAQ(ctx context.Context, actor Actor, id string, upd FAQUpdate) (*FAQ, error) {
	if !actor.Admin {
		return nil, core.NewForbiddenError("only administrators can manage FAQs")
	}
	if upd.Empty() {
		return nil, core.NewInvalidRequestError("No fields to update", nil)
	}
	faq, err := s.getFAQ(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := upd.apply(faq); err != nil {
		return nil, err
	}
	faq.UpdatedAt = s.now()
	if err := s.store.ReplaceFAQ(ctx, faq); err != nil {
		return nil, fmt.Errorf("failed to update FAQ: %w", err)
	}
	return faq, nil
}

// DeleteFAQ removes the FAQ permanently.
func (s *Service) DeleteFAQ(ctx context.Context, actor Actor, id string) error {
	if !actor.Admin {
		return core.NewForbiddenError("only administrators can manage FAQs")
	}
	err := s.store.DeleteFAQ(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return faqNotFound(id)
	}
	return err
}

// ListAnnouncements returns active announcements ordered by date.
func (s *Service) ListAnnouncements(ctx context.Context, filter AnnouncementFilter) ([]Announcement, error) {
	limit, err := clampLimit(filter.Limit, DefaultAnnouncementLimit, MaxAnnouncementLimit)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	if filter.Now.IsZero() {
		filter.Now = s.now()
	}
	if filter.Category != "" {
		if err := checkEnum("category", filter.Category, AnnouncementCategories); err != nil {
			return nil, err
		}
	}
	return s.store.ListAnnouncements(ctx, filter)
}

func (s *Service) GetAnnouncement(ctx context.Context, id string) (*Announcement, error) {
	a, err := s.store.GetAnnouncement(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, announcementNotFound(id)
	}
	return a, err
}

// CreateAnnouncement records actor as the creator.
func (s *Service) CreateAnnouncement(ctx context.Context, actor Actor, in AnnouncementInput) (*Announcement, error) {
	if actor.ID == "" {
		return nil, core.NewAuthenticationError("", "authentication required")
	}
	return s.createAnnouncement(ctx, in, actor.ID, s.now())
}

func (s *Service) createAnnouncement(ctx context.Context, in AnnouncementInput, createdBy string, now time.Time) (*Announcement, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	a := &Announcement{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Date:        in.Date.UTC(),
		Priority:    in.Priority,
		IsActive:    true,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertAnnouncement(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create announcement: %w", err)
	}
	return a, nil
}

// UpdateAnnouncement applies a partial update; only the creator or an admin may do so.
func (s *Service) UpdateAnnouncement(ctx context.Context, actor Actor, id string, upd AnnouncementUpdate) (*Announcement, error) {
	a, err := s.GetAnnouncement(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(actor, a) {
		return nil, core.NewForbiddenError("You are not authorized to update this announcement")
	}
	if upd.Empty() {
		return nil, core.NewInvalidRequestError("No fields to update", nil)
	}
	if err := upd.apply(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = s.now()
	if err := s.store.ReplaceAnnouncement(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update announcement: %w", err)
	}
	return a, nil
}

// DeleteAnnouncement soft-deletes by clearing is_active.
func (s *Service) DeleteAnnouncement(ctx context.Context, actor Actor, id string) error {
	a, err := s.GetAnnouncement(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(actor, a) {
		return core.NewForbiddenError("You are not authorized to delete this announcement")
	}
	a.IsActive = false
	a.UpdatedAt = s.now()
	if err := s.store.ReplaceAnnouncement(ctx, a); err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	return nil
}

func (s *Service) getFAQ(ctx context.Context, id string) (*FAQ, error) {
	faq, err := s.store.GetFAQ(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, faqNotFound(id)
	}
	return faq, err
}

func canModify(actor Actor, a *Announcement) bool {
	return actor.Admin || (actor.ID != "" && actor.ID == a.CreatedBy)
}

func faqNotFound(id string) error {
	return core.NewNotFoundError(fmt.Sprintf("FAQ with ID %s not found", id))
}

func announcementNotFound(id string) error {
	return core.NewNotFoundError(fmt.Sprintf("Announcement with ID %s not found", id))
}

func defaultFAQs() []FAQInput {
	return []FAQInput{
		{
			Question: "What is the duration of the BCA program?",
			Answer:   "The BCA program is 3 years long.",
			Category: "academics",
			Tags:     []string{"bca", "duration"},
		},
		{
			Question: "What are the annual fees?",
			Answer:   "The annual fees are ₹1,00,000. Total for 3 years is ₹3,00,000.",
			Category: "general",
			Tags:     []string{"fees"},
		},
	}
}

// defaultAnnouncements dates the welcome notice a month out so upcoming-only lists show it.
func defaultAnnouncements(now time.Time) []AnnouncementInput {
	return []AnnouncementInput{
		{
			Title:       "Welcome to ClarifyAI",
			Description: "Your intelligent campus assistant is now live!",
			Category:    "general",
			Date:        now.AddDate(0, 1, 0),
			Priority:    PriorityHigh,
		},
	}
}
