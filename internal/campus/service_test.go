package campus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarifyai/internal/core"
	"clarifyai/internal/storage"
)

var (
	admin   = Actor{ID: "admin-1", Admin: true}
	student = Actor{ID: "student-1"}
	other   = Actor{ID: "student-2"}
)

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	st, err := storage.NewSQLite(context.Background(), storage.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	store, err := NewStore(context.Background(), st)
	require.NoError(t, err)
	return NewService(store), store
}

func requireGatewayType(t *testing.T, err error, want core.ErrorType) {
	t.Helper()
	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr), "expected GatewayError, got %v", err)
	assert.Equal(t, want, gwErr.Type)
}

func validFAQ() FAQInput {
	return FAQInput{
		Question: "What are the library timings?",
		Answer:   "The library is open from 8 AM to 10 PM on weekdays.",
		Category: "library",
		Tags:     []string{" Library ", "TIMINGS", "  "},
	}
}

func TestSeed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx))
	require.NoError(t, svc.Seed(ctx))

	faqs, err := svc.ListFAQs(ctx, FAQFilter{})
	require.NoError(t, err)
	assert.Len(t, faqs, 2)

	anns, err := svc.ListAnnouncements(ctx, AnnouncementFilter{UpcomingOnly: true})
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "Welcome to ClarifyAI", anns[0].Title)
	assert.Equal(t, SystemActor, anns[0].CreatedBy)
}

func TestFAQLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	faq, err := svc.CreateFAQ(ctx, admin, validFAQ())
	require.NoError(t, err)
	assert.Equal(t, []string{"library", "timings"}, faq.Tags)
	assert.True(t, faq.IsActive)
	assert.Equal(t, "admin-1", faq.CreatedBy)

	viewed, err := svc.ViewFAQ(ctx, faq.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, viewed.ViewCount)
	viewed, err = svc.ViewFAQ(ctx, faq.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, viewed.ViewCount)

	newAnswer := "The library is open from 7 AM to 11 PM during exams."
	updated, err := svc.UpdateFAQ(ctx, admin, faq.ID, FAQUpdate{Answer: &newAnswer})
	require.NoError(t, err)
	assert.Equal(t, newAnswer, updated.Answer)
	assert.Equal(t, faq.Question, updated.Question)

	require.NoError(t, svc.DeleteFAQ(ctx, admin, faq.ID))
	_, err = svc.ViewFAQ(ctx, faq.ID)
	requireGatewayType(t, err, core.ErrorTypeNotFound)

	err = svc.DeleteFAQ(ctx, admin, faq.ID)
	requireGatewayType(t, err, core.ErrorTypeNotFound)
}

func TestFAQAuthorization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateFAQ(ctx, student, validFAQ())
	requireGatewayType(t, err, core.ErrorTypeForbidden)

	faq, err := svc.CreateFAQ(ctx, admin, validFAQ())
	require.NoError(t, err)

	q := "Changed question?"
	_, err = svc.UpdateFAQ(ctx, student, faq.ID, FAQUpdate{Question: &q})
	requireGatewayType(t, err, core.ErrorTypeForbidden)

	err = svc.DeleteFAQ(ctx, student, faq.ID)
	requireGatewayType(t, err, core.ErrorTypeForbidden)
}

func TestFAQValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*FAQInput)
		want   string
	}{
		{"short question", func(in *FAQInput) { in.Question = "Why" }, "question"},
		{"long question", func(in *FAQInput) { in.Question = strings.Repeat("q", 501) }, "question"},
		{"short answer", func(in *FAQInput) { in.Answer = "Yes" }, "answer"},
		{"long answer", func(in *FAQInput) { in.Answer = strings.Repeat("a", 5001) }, "answer"},
		{"bad category", func(in *FAQInput) { in.Category = "fees" }, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validFAQ()
			tt.mutate(&in)
			_, err := svc.CreateFAQ(ctx, admin, in)
			requireGatewayType(t, err, core.ErrorTypeInvalidRequest)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	faq, err := svc.CreateFAQ(ctx, admin, validFAQ())
	require.NoError(t, err)

	_, err = svc.UpdateFAQ(ctx, admin, faq.ID, FAQUpdate{})
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)
	assert.Contains(t, err.Error(), "No fields to update")

	bad := "x"
	_, err = svc.UpdateFAQ(ctx, admin, faq.ID, FAQUpdate{Answer: &bad})
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)
}

func TestListFAQs_Filters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateFAQ(ctx, admin, validFAQ())
	require.NoError(t, err)
	hostel := FAQInput{
		Question: "Is hostel accommodation available?",
		Answer:   "Yes, separate hostels are available for boys and girls.",
		Category: "hostel",
		Tags:     []string{"rooms"},
	}
	_, err = svc.CreateFAQ(ctx, admin, hostel)
	require.NoError(t, err)
	inactive := false
	hidden := hostel
	hidden.IsActive = &inactive
	_, err = svc.CreateFAQ(ctx, admin, hidden)
	require.NoError(t, err)

	all, err := svc.ListFAQs(ctx, FAQFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCategory, err := svc.ListFAQs(ctx, FAQFilter{Category: "hostel"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "hostel", byCategory[0].Category)

	byTag, err := svc.ListFAQs(ctx, FAQFilter{Search: "ROOMS"})
	require.NoError(t, err)
	require.Len(t, byTag, 1)

	literal, err := svc.ListFAQs(ctx, FAQFilter{Search: "%"})
	require.NoError(t, err)
	assert.Empty(t, literal)

	limited, err := svc.ListFAQs(ctx, FAQFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = svc.ListFAQs(ctx, FAQFilter{Limit: 501})
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)
	_, err = svc.ListFAQs(ctx, FAQFilter{Category: "nope"})
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)
}

func validAnnouncement(date time.Time) AnnouncementInput {
	return AnnouncementInput{
		Title:       "Annual Sports Day",
		Description: "Join us for the annual sports day on campus.",
		Category:    "sports",
		Date:        date,
	}
}

func TestAnnouncementLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	future := time.Now().Add(48 * time.Hour)

	a, err := svc.CreateAnnouncement(ctx, student, validAnnouncement(future))
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, a.Priority)
	assert.Equal(t, "student-1", a.CreatedBy)

	got, err := svc.GetAnnouncement(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	assert.True(t, a.Date.Equal(got.Date))

	high := PriorityHigh
	_, err = svc.UpdateAnnouncement(ctx, other, a.ID, AnnouncementUpdate{Priority: &high})
	requireGatewayType(t, err, core.ErrorTypeForbidden)

	updated, err := svc.UpdateAnnouncement(ctx, student, a.ID, AnnouncementUpdate{Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, updated.Priority)

	urgent := PriorityUrgent
	_, err = svc.UpdateAnnouncement(ctx, admin, a.ID, AnnouncementUpdate{Priority: &urgent})
	require.NoError(t, err)

	_, err = svc.UpdateAnnouncement(ctx, student, a.ID, AnnouncementUpdate{})
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)

	err = svc.DeleteAnnouncement(ctx, other, a.ID)
	requireGatewayType(t, err, core.ErrorTypeForbidden)
	require.NoError(t, svc.DeleteAnnouncement(ctx, student, a.ID))

	// Soft delete: still readable by id, gone from lists.
	got, err = svc.GetAnnouncement(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	list, err := svc.ListAnnouncements(ctx, AnnouncementFilter{UpcomingOnly: true})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.GetAnnouncement(ctx, "missing")
	requireGatewayType(t, err, core.ErrorTypeNotFound)
}

func TestListAnnouncements_Filters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := validAnnouncement(now.Add(-24 * time.Hour))
	soon := validAnnouncement(now.Add(24 * time.Hour))
	later := validAnnouncement(now.Add(72 * time.Hour))
	later.Category = "exam"
	later.Title = "Mid-term examinations"
	for _, in := range []AnnouncementInput{later, past, soon} {
		_, err := svc.CreateAnnouncement(ctx, admin, in)
		require.NoError(t, err)
	}

	upcoming, err := svc.ListAnnouncements(ctx, AnnouncementFilter{UpcomingOnly: true, Now: now})
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.True(t, upcoming[0].Date.Before(upcoming[1].Date))

	all, err := svc.ListAnnouncements(ctx, AnnouncementFilter{Now: now})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	exams, err := svc.ListAnnouncements(ctx, AnnouncementFilter{Category: "exam"})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "Mid-term examinations", exams[0].Title)

	_, err = svc.ListAnnouncements(ctx, AnnouncementFilter{Limit: 201})
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)
	_, err = svc.ListAnnouncements(ctx, AnnouncementFilter{Limit: -1})
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)
}

func TestAnnouncementValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := validAnnouncement(time.Time{})
	_, err := svc.CreateAnnouncement(ctx, admin, in)
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)

	in = validAnnouncement(time.Now())
	in.Priority = "critical"
	_, err = svc.CreateAnnouncement(ctx, admin, in)
	requireGatewayType(t, err, core.ErrorTypeInvalidRequest)

	_, err = svc.CreateAnnouncement(ctx, Actor{}, validAnnouncement(time.Now()))
	requireGatewayType(t, err, core.ErrorTypeAuthentication)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, normalizeTags([]string{" A ", "", "  ", "B C"}))
	assert.Equal(t, []string{}, normalizeTags(nil))
}
