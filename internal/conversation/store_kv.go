package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"clarifyai/internal/core"
	"clarifyai/internal/kvstore"
)

const (
	kvConversationPrefix = "conversation:"
	kvOwnerPrefix        = "owner:"
)

// kvDocument is the value stored per conversation.
type kvDocument struct {
	Conversation
	Messages []Message `json:"messages"`
}

// KVStore implements Store on top of a kvstore.Store.
// Each conversation is one document; an index per owner lists its ids.
type KVStore struct {
	// mu serialises read-modify-write cycles within this process
	mu sync.Mutex
	kv kvstore.Store
}

// NewKVStore wraps kv. Closing the KVStore closes kv.
func NewKVStore(kv kvstore.Store) (*KVStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("key-value store is required")
	}
	return &KVStore{kv: kv}, nil
}

func (s *KVStore) Create(ctx context.Context, ownerID, title string) (*Conversation, error) {
	c := newConversation(ownerID, title)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putDocument(ctx, &kvDocument{Conversation: *c, Messages: []Message{}}); err != nil {
		return nil, err
	}
	ids, err := s.ownerIndex(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.putOwnerIndex(ctx, ownerID, append(ids, c.ID)); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *KVStore) Get(ctx context.Context, id string) (*Conversation, error) {
	doc, err := s.document(ctx, id)
	if err != nil {
		return nil, err
	}
	return &doc.Conversation, nil
}

func (s *KVStore) List(ctx context.Context, ownerID string, limit int) ([]Conversation, error) {
	ids, err := s.ownerIndex(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]Conversation, 0, len(ids))
	for _, id := range ids {
		doc, err := s.document(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Expired or deleted by another instance.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Conversation)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *KVStore) Rename(ctx context.Context, id, title string) (*Conversation, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Title = title
	doc.UpdatedAt = nowFunc()
	if err := s.putDocument(ctx, doc); err != nil {
		return nil, err
	}
	return &doc.Conversation, nil
}

func (s *KVStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document(ctx, id)
	if err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, kvConversationPrefix+id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	ids, err := s.ownerIndex(ctx, doc.OwnerID)
	if err != nil {
		return err
	}
	ids = slices.DeleteFunc(ids, func(v string) bool { return v == id })
	return s.putOwnerIndex(ctx, doc.OwnerID, ids)
}

func (s *KVStore) AppendMessages(ctx context.Context, id string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document(ctx, id)
	if err != nil {
		return err
	}
	now := nowFunc()
	doc.Messages = append(doc.Messages, newMessages(msgs, now)...)
	doc.UpdatedAt = now
	return s.putDocument(ctx, doc)
}

func (s *KVStore) Messages(ctx context.Context, id string) ([]Message, error) {
	doc, err := s.document(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Messages == nil {
		doc.Messages = []Message{}
	}
	return doc.Messages, nil
}

func (s *KVStore) SetFeedback(ctx context.Context, id, messageID string, helpful bool) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document(ctx, id)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(doc.Messages, func(m Message) bool { return m.ID == messageID })
	if idx < 0 {
		return nil, ErrNotFound
	}
	if err := checkFeedbackTarget(doc.Messages[idx].Role); err != nil {
		return nil, err
	}
	doc.Messages[idx].WasHelpful = &helpful
	if err := s.putDocument(ctx, doc); err != nil {
		return nil, err
	}
	m := doc.Messages[idx]
	return &m, nil
}

func (s *KVStore) Close() error {
	return s.kv.Close()
}

func (s *KVStore) document(ctx context.Context, id string) (*kvDocument, error) {
	data, err := s.kv.Get(ctx, kvConversationPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	var doc kvDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse conversation %s: %w", id, err)
	}
	return &doc, nil
}

func (s *KVStore) putDocument(ctx context.Context, doc *kvDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := s.kv.Set(ctx, kvConversationPrefix+doc.ID, data); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}

func (s *KVStore) ownerIndex(ctx context.Context, ownerID string) ([]string, error) {
	data, err := s.kv.Get(ctx, kvOwnerPrefix+ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read owner index: %w", err)
	}
	var ids []string
	if data == nil {
		return ids, nil
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse owner index: %w", err)
	}
	return ids, nil
}

func (s *KVStore) putOwnerIndex(ctx context.Context, ownerID string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal owner index: %w", err)
	}
	if err := s.kv.Set(ctx, kvOwnerPrefix+ownerID, data); err != nil {
		return fmt.Errorf("failed to write owner index: %w", err)
	}
	return nil
}
