package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarifyai/internal/core"
	"clarifyai/internal/kvstore"
	"clarifyai/internal/storage"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "When is the library open?", "When is the library open?"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"fifty one", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"multibyte", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
		{"trimmed", "  hello  ", "hello"},
		{"blank", "   ", DefaultTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.input))
		})
	}
}

// steppingClock makes every call to nowFunc one second later than the last.
func steppingClock(t *testing.T) {
	t.Helper()
	var (
		mu  sync.Mutex
		cur = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	)
	prev := nowFunc
	nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
	t.Cleanup(func() { nowFunc = prev })
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	st, err := storage.NewSQLite(context.Background(), storage.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	store, err := New(context.Background(), BackendTable, st, nil)
	require.NoError(t, err)
	return store
}

func newLocalKVStore(t *testing.T) Store {
	t.Helper()
	kv := kvstore.NewLocal(filepath.Join(t.TempDir(), "conversations.json"))
	store, err := New(context.Background(), BackendKV, nil, kv)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStores(t *testing.T) {
	backends := map[string]func(*testing.T) Store{
		"sqlite":  newSQLiteStore,
		"kvLocal": newLocalKVStore,
	}
	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, build(t)) })
			t.Run("ListOrdering", func(t *testing.T) { testListOrdering(t, build(t)) })
			t.Run("Rename", func(t *testing.T) { testRename(t, build(t)) })
			t.Run("AppendAndMessages", func(t *testing.T) { testAppendAndMessages(t, build(t)) })
			t.Run("Delete", func(t *testing.T) { testDelete(t, build(t)) })
			t.Run("NotFound", func(t *testing.T) { testNotFound(t, build(t)) })
			t.Run("Feedback", func(t *testing.T) { testFeedback(t, build(t)) })
		})
	}
}

func testCreateGet(t *testing.T, store Store) {
	ctx := context.Background()

	c, err := store.Create(ctx, "user-1", "Hostel fees")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Hostel fees", c.Title)

	got, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, "Hostel fees", got.Title)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))

	blank, err := store.Create(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, blank.Title)
}

func testListOrdering(t *testing.T, store Store) {
	steppingClock(t)
	ctx := context.Background()

	first, err := store.Create(ctx, "owner", "first")
	require.NoError(t, err)
	second, err := store.Create(ctx, "owner", "second")
	require.NoError(t, err)
	_, err = store.Create(ctx, "someone-else", "other")
	require.NoError(t, err)

	list, err := store.List(ctx, "owner", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	// Appending bumps the conversation to the top.
	require.NoError(t, store.AppendMessages(ctx, first.ID, core.Message{Role: core.RoleUser, Content: "hi"}))

	list, err = store.List(ctx, "owner", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	limited, err := store.List(ctx, "owner", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)

	empty, err := store.List(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testRename(t *testing.T, store Store) {
	ctx := context.Background()
	c, err := store.Create(ctx, "u", "old")
	require.NoError(t, err)

	renamed, err := store.Rename(ctx, c.ID, "  new title ")
	require.NoError(t, err)
	assert.Equal(t, "new title", renamed.Title)

	_, err = store.Rename(ctx, c.ID, " ")
	var gwErr *core.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, core.ErrorTypeInvalidRequest, gwErr.Type)
}

func testAppendAndMessages(t *testing.T, store Store) {
	ctx := context.Background()
	c, err := store.Create(ctx, "u", "chat")
	require.NoError(t, err)

	require.NoError(t, store.AppendMessages(ctx, c.ID,
		core.Message{Role: core.RoleUser, Content: "What are the fees?"},
		core.Message{Role: core.RoleAssistant, Content: "₹1,00,000 per year."},
	))
	require.NoError(t, store.AppendMessages(ctx, c.ID,
		core.Message{Role: core.RoleUser, Content: "And hostel?"},
	))
	require.NoError(t, store.AppendMessages(ctx, c.ID))

	msgs, err := store.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "What are the fees?", msgs[0].Content)
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "₹1,00,000 per year.", msgs[1].Content)
	assert.Equal(t, "And hostel?", msgs[2].Content)
	for _, m := range msgs {
		assert.NotEmpty(t, m.ID)
	}

	fresh, err := store.Create(ctx, "u", "empty")
	require.NoError(t, err)
	none, err := store.Messages(ctx, fresh.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testDelete(t *testing.T, store Store) {
	ctx := context.Background()
	c, err := store.Create(ctx, "u", "bye")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, c.ID, core.Message{Role: core.RoleUser, Content: "x"}))

	require.NoError(t, store.Delete(ctx, c.ID))

	_, err = store.Get(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Messages(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx, "u", 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, store.Delete(ctx, c.ID), ErrNotFound)
}

func testNotFound(t *testing.T, store Store) {
	ctx := context.Background()
	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Rename(ctx, "missing", "title")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.AppendMessages(ctx, "missing", core.Message{Role: core.RoleUser, Content: "x"}), ErrNotFound)
}

func testFeedback(t *testing.T, store Store) {
	ctx := context.Background()
	c, err := store.Create(ctx, "u", "library")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, c.ID,
		core.Message{Role: core.RoleUser, Content: "When does the library open?"},
		core.Message{Role: core.RoleAssistant, Content: "At 8."},
	))
	msgs, err := store.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[1].WasHelpful)

	rated, err := store.SetFeedback(ctx, c.ID, msgs[1].ID, true)
	require.NoError(t, err)
	require.NotNil(t, rated.WasHelpful)
	assert.True(t, *rated.WasHelpful)
	assert.Equal(t, "At 8.", rated.Content)

	rated, err = store.SetFeedback(ctx, c.ID, msgs[1].ID, false)
	require.NoError(t, err)
	assert.False(t, *rated.WasHelpful)

	msgs, err = store.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, msgs[1].WasHelpful)
	assert.False(t, *msgs[1].WasHelpful)
	assert.Nil(t, msgs[0].WasHelpful)

	_, err = store.SetFeedback(ctx, c.ID, msgs[0].ID, true)
	assert.ErrorIs(t, err, ErrNotAssistantMessage)

	other, err := store.Create(ctx, "u", "other")
	require.NoError(t, err)
	_, err = store.SetFeedback(ctx, other.ID, msgs[1].ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.SetFeedback(ctx, c.ID, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.SetFeedback(ctx, "missing", msgs[1].ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, "graph", nil, nil)
	assert.ErrorContains(t, err, "unknown conversation backend")

	_, err = New(ctx, BackendTable, nil, nil)
	assert.ErrorContains(t, err, "requires a storage connection")

	_, err = New(ctx, BackendKV, nil, nil)
	assert.ErrorContains(t, err, "key-value store is required")
}
