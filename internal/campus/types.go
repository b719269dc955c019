// Package campus manages the FAQ and announcement content shown by the assistant.
package campus

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"clarifyai/internal/core"
)

// FAQ categories
var FAQCategories = []string{
	"academics", "admissions", "facilities", "events", "general", "sports",
	"library", "hostel", "placement", "clubs", "accommodation", "technical",
}

// Announcement categories
var AnnouncementCategories = []string{
	"academic", "event", "exam", "holiday", "general", "sports", "cultural",
	"placement", "emergency", "facilities", "events", "holidays",
}

// Announcement priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
	PriorityNormal = "normal"
)

var priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityNormal}

// FAQ is a question and answer pair.
type FAQ struct {
	ID        string    `json:"id" bson:"_id"`
	Question  string    `json:"question" bson:"question"`
	Answer    string    `json:"answer" bson:"answer"`
	Category  string    `json:"category" bson:"category"`
	Tags      []string  `json:"tags" bson:"tags"`
	IsActive  bool      `json:"is_active" bson:"is_active"`
	CreatedBy string    `json:"created_by,omitempty" bson:"created_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	ViewCount int       `json:"view_count" bson:"view_count"`
}

// Announcement is a dated campus notice.
type Announcement struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Category    string    `json:"category" bson:"category"`
	Date        time.Time `json:"date" bson:"date"`
	Priority    string    `json:"priority" bson:"priority"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedBy   string    `json:"created_by,omitempty" bson:"created_by"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// FAQInput is the body of a create request.
type FAQInput struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	IsActive *bool    `json:"is_active"`
}

// FAQUpdate carries the fields of a partial update; nil means unchanged.
type FAQUpdate struct {
	Question *string   `json:"question"`
	Answer   *string   `json:"answer"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
	IsActive *bool     `json:"is_active"`
}

// AnnouncementInput is the body of a create request.
type AnnouncementInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Priority    string    `json:"priority"`
}

// AnnouncementUpdate carries the fields of a partial update; nil means unchanged.
type AnnouncementUpdate struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Date        *time.Time `json:"date"`
	Priority    *string    `json:"priority"`
	IsActive    *bool      `json:"is_active"`
}

// FAQFilter narrows ListFAQs. Only active FAQs are listed.
type FAQFilter struct {
	Category string
	// Search matches question, answer or tags case-insensitively
	Search string
	Limit  int
}

// AnnouncementFilter narrows ListAnnouncements. Only active announcements are listed.
type AnnouncementFilter struct {
	// UpcomingOnly keeps announcements dated at or after Now
	UpcomingOnly bool
	Now          time.Time
	Category     string
	Limit        int
}

const (
	DefaultFAQLimit          = 100
	MaxFAQLimit              = 500
	DefaultAnnouncementLimit = 50
	MaxAnnouncementLimit     = 200
)

func (in *FAQInput) normalize() error {
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	in.Tags = normalizeTags(in.Tags)
	return firstError(
		checkLength("question", in.Question, 5, 500),
		checkLength("answer", in.Answer, 10, 5000),
		checkEnum("category", in.Category, FAQCategories),
	)
}

// Empty reports whether the update changes nothing.
func (u *FAQUpdate) Empty() bool {
	return u.Question == nil && u.Answer == nil && u.Category == nil && u.Tags == nil && u.IsActive == nil
}

func (u *FAQUpdate) apply(f *FAQ) error {
	if u.Question != nil {
		q := strings.TrimSpace(*u.Question)
		if err := checkLength("question", q, 5, 500); err != nil {
			return err
		}
		f.Question = q
	}
	if u.Answer != nil {
		a := strings.TrimSpace(*u.Answer)
		if err := checkLength("answer", a, 10, 5000); err != nil {
			return err
		}
		f.Answer = a
	}
	if u.Category != nil {
		if err := checkEnum("category", *u.Category, FAQCategories); err != nil {
			return err
		}
		f.Category = *u.Category
	}
	if u.Tags != nil {
		f.Tags = normalizeTags(*u.Tags)
	}
	if u.IsActive != nil {
		f.IsActive = *u.IsActive
	}
	return nil
}

func (in *AnnouncementInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	var dateErr error
	if in.Date.IsZero() {
		dateErr = core.NewInvalidRequestError("date is required", nil)
	}
	return firstError(
		checkLength("title", in.Title, 5, 200),
		checkLength("description", in.Description, 10, 2000),
		checkEnum("category", in.Category, AnnouncementCategories),
		checkEnum("priority", in.Priority, priorities),
		dateErr,
	)
}

// Empty reports whether the update changes nothing.
func (u *AnnouncementUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil &&
		u.Date == nil && u.Priority == nil && u.IsActive == nil
}

func (u *AnnouncementUpdate) apply(a *Announcement) error {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if err := checkLength("title", title, 5, 200); err != nil {
			return err
		}
		a.Title = title
	}
	if u.Description != nil {
		desc := strings.TrimSpace(*u.Description)
		if err := checkLength("description", desc, 10, 2000); err != nil {
			return err
		}
		a.Description = desc
	}
	if u.Category != nil {
		if err := checkEnum("category", *u.Category, AnnouncementCategories); err != nil {
			return err
		}
		a.Category = *u.Category
	}
	if u.Date != nil {
		a.Date = u.Date.UTC()
	}
	if u.Priority != nil {
		if err := checkEnum("priority", *u.Priority, priorities); err != nil {
			return err
		}
		a.Priority = *u.Priority
	}
	if u.IsActive != nil {
		a.IsActive = *u.IsActive
	}
	return nil
}

// normalizeTags lowercases and trims tags, dropping empty ones.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		return core.NewInvalidRequestError(
			fmt.Sprintf("%s must be between %d and %d characters", field, minLen, maxLen), nil)
	}
	return nil
}

func checkEnum(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return core.NewInvalidRequestError(
			fmt.Sprintf("invalid %s %q (valid: %s)", field, value, strings.Join(allowed, ", ")), nil)
	}
	return nil
}

// firstError returns the first non-nil validation failure.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func clampLimit(limit, def, maxLimit int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > maxLimit {
		return 0, core.NewInvalidRequestError(fmt.Sprintf("limit must be between 1 and %d", maxLimit), nil)
	}
	return limit, nil
}
