// Package conversation persists chat conversations and their transcripts.
// Backends: SQLite, PostgreSQL, MongoDB and any kvstore.Store.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"clarifyai/internal/core"
)

const (
	// DefaultTitle is used until the first user message names the conversation.
	DefaultTitle = "New Chat"

	// DefaultListLimit bounds List when the caller passes no limit.
	DefaultListLimit = 50

	maxTitleRunes = 50
	titleEllipsis = "..."
)

var (
	// ErrNotFound is returned when a conversation or message id does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrNotAssistantMessage is returned when feedback targets a user message.
	ErrNotAssistantMessage = errors.New("feedback can only be given on assistant replies")
)

// Conversation is the metadata of one chat thread.
type Conversation struct {
	ID        string    `json:"id" bson:"_id"`
	OwnerID   string    `json:"owner_id" bson:"owner_id"`
	Title     string    `json:"title" bson:"title"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Message is one persisted turn of a conversation.
// WasHelpful is nil until the owner rates an assistant reply.
type Message struct {
	ID         string    `json:"id" bson:"id"`
	Role       string    `json:"role" bson:"role"`
	Content    string    `json:"content" bson:"content"`
	WasHelpful *bool     `json:"was_helpful,omitempty" bson:"was_helpful,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Store defines conversation persistence.
// Writes are last-write-wins. Implementations must be safe for concurrent use.
type Store interface {
	// Create starts a conversation owned by ownerID. A blank title becomes DefaultTitle.
	Create(ctx context.Context, ownerID, title string) (*Conversation, error)

	// Get returns ErrNotFound when id does not exist.
	Get(ctx context.Context, id string) (*Conversation, error)

	// List returns ownerID's conversations, most recently updated first.
	List(ctx context.Context, ownerID string, limit int) ([]Conversation, error)

	Rename(ctx context.Context, id, title string) (*Conversation, error)

	// Delete removes the conversation and its messages.
	Delete(ctx context.Context, id string) error

	// AppendMessages adds msgs in order and bumps UpdatedAt.
	AppendMessages(ctx context.Context, id string, msgs ...core.Message) error

	// Messages returns the transcript in chronological order.
	Messages(ctx context.Context, id string) ([]Message, error)

	// SetFeedback records whether an assistant reply helped. It returns ErrNotFound
	// when the message is not part of conversation id, ErrNotAssistantMessage for user turns.
	SetFeedback(ctx context.Context, id, messageID string, helpful bool) (*Message, error)

	Close() error
}

// DeriveTitle names a conversation after its first user message.
// Titles longer than 50 characters are cut and suffixed with "...".
func DeriveTitle(firstUserMessage string) string {
	title := strings.TrimSpace(firstUserMessage)
	if title == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return string(runes[:maxTitleRunes]) + titleEllipsis
}

// nowFunc is swapped in tests that need deterministic ordering.
var nowFunc = func() time.Time { return time.Now().UTC() }

func newConversation(ownerID, title string) *Conversation {
	now := nowFunc()
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	return &Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newMessages(msgs []core.Message, at time.Time) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			ID:        uuid.NewString(),
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: at,
		})
	}
	return out
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func checkFeedbackTarget(role string) error {
	if role != core.RoleAssistant {
		return ErrNotAssistantMessage
	}
	return nil
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", core.NewInvalidRequestError("title must not be empty", nil)
	}
	return title, nil
}
