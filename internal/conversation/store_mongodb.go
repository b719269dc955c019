package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"clarifyai/internal/core"
)

// mongoConversation is the stored document; the transcript is embedded.
type mongoConversation struct {
	Conversation `bson:",inline"`
	Messages     []Message `bson:"messages"`
}

// MongoDBStore implements Store for MongoDB.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates the conversations collection indexes.
func NewMongoDBStore(ctx context.Context, database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection("conversations")

	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		slog.Warn("failed to create MongoDB index", "error", err)
	}

	return &MongoDBStore{collection: collection}, nil
}

func (s *MongoDBStore) Create(ctx context.Context, ownerID, title string) (*Conversation, error) {
	c := newConversation(ownerID, title)
	doc := mongoConversation{Conversation: *c, Messages: []Message{}}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return c, nil
}

var metadataProjection = bson.D{{Key: "messages", Value: 0}}

func (s *MongoDBStore) Get(ctx context.Context, id string) (*Conversation, error) {
	var c Conversation
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(metadataProjection)).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	return &c, nil
}

func (s *MongoDBStore) List(ctx context.Context, ownerID string, limit int) ([]Conversation, error) {
	opts := options.Find().
		SetProjection(metadataProjection).
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cursor, err := s.collection.Find(ctx, bson.D{{Key: "owner_id", Value: ownerID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]Conversation, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return out, nil
}

func (s *MongoDBStore) Rename(ctx context.Context, id, title string) (*Conversation, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return nil, err
	}
	res, err := s.collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "title", Value: title},
			{Key: "updated_at", Value: nowFunc()},
		}}})
	if err != nil {
		return nil, fmt.Errorf("failed to rename conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *MongoDBStore) Delete(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessages pushes onto the embedded transcript in a single atomic update.
func (s *MongoDBStore) AppendMessages(ctx context.Context, id string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := nowFunc()
	res, err := s.collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$push", Value: bson.D{{Key: "messages", Value: bson.D{{Key: "$each", Value: newMessages(msgs, now)}}}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		})
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) Messages(ctx context.Context, id string) ([]Message, error) {
	var doc mongoConversation
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	if doc.Messages == nil {
		doc.Messages = []Message{}
	}
	return doc.Messages, nil
}

// SetFeedback updates the embedded message in place through the positional operator.
func (s *MongoDBStore) SetFeedback(ctx context.Context, id, messageID string, helpful bool) (*Message, error) {
	messages, err := s.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(messages, func(m Message) bool { return m.ID == messageID })
	if idx < 0 {
		return nil, ErrNotFound
	}
	if err := checkFeedbackTarget(messages[idx].Role); err != nil {
		return nil, err
	}

	res, err := s.collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "messages.id", Value: messageID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "messages.$.was_helpful", Value: helpful}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}

	m := messages[idx]
	m.WasHelpful = &helpful
	return &m, nil
}

// Close is a no-op; the client is managed by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
