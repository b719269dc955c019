package campus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBStore implements Store for MongoDB.
type MongoDBStore struct {
	faqs          *mongo.Collection
	announcements *mongo.Collection
}

// NewMongoDBStore creates the collection indexes.
func NewMongoDBStore(ctx context.Context, database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	s := &MongoDBStore{
		faqs:          database.Collection("faqs"),
		announcements: database.Collection("announcements"),
	}

	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.faqs.Indexes().CreateMany(idxCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		slog.Warn("failed to create some MongoDB indexes", "error", err)
	}
	if _, err := s.announcements.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}},
	}); err != nil {
		slog.Warn("failed to create some MongoDB indexes", "error", err)
	}

	return s, nil
}

func (s *MongoDBStore) ListFAQs(ctx context.Context, filter FAQFilter) ([]FAQ, error) {
	query := bson.D{{Key: "is_active", Value: true}}
	if filter.Category != "" {
		query = append(query, bson.E{Key: "category", Value: filter.Category})
	}
	if filter.Search != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query = append(query, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "question", Value: pattern}},
			bson.D{{Key: "answer", Value: pattern}},
			bson.D{{Key: "tags", Value: pattern}},
		}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(filter.Limit))
	cursor, err := s.faqs.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list FAQs: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]FAQ, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode FAQs: %w", err)
	}
	for i := range out {
		if out[i].Tags == nil {
			out[i].Tags = []string{}
		}
	}
	return out, nil
}

func (s *MongoDBStore) GetFAQ(ctx context.Context, id string) (*FAQ, error) {
	var faq FAQ
	if err := findByID(ctx, s.faqs, id, &faq); err != nil {
		return nil, err
	}
	if faq.Tags == nil {
		faq.Tags = []string{}
	}
	return &faq, nil
}

func (s *MongoDBStore) InsertFAQ(ctx context.Context, faq *FAQ) error {
	if _, err := s.faqs.InsertOne(ctx, faq); err != nil {
		return fmt.Errorf("failed to insert FAQ: %w", err)
	}
	return nil
}

func (s *MongoDBStore) ReplaceFAQ(ctx context.Context, faq *FAQ) error {
	res, err := s.faqs.UpdateOne(ctx, bson.D{{Key: "_id", Value: faq.ID}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "question", Value: faq.Question},
		{Key: "answer", Value: faq.Answer},
		{Key: "category", Value: faq.Category},
		{Key: "tags", Value: faq.Tags},
		{Key: "is_active", Value: faq.IsActive},
		{Key: "updated_at", Value: faq.UpdatedAt},
	}}})
	if err != nil {
		return fmt.Errorf("failed to update FAQ: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) DeleteFAQ(ctx context.Context, id string) error {
	res, err := s.faqs.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete FAQ: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) IncrementFAQViews(ctx context.Context, id string) error {
	res, err := s.faqs.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "view_count", Value: 1}}}})
	if err != nil {
		return fmt.Errorf("failed to increment FAQ views: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) ListAnnouncements(ctx context.Context, filter AnnouncementFilter) ([]Announcement, error) {
	query := bson.D{{Key: "is_active", Value: true}}
	if filter.UpcomingOnly {
		query = append(query, bson.E{Key: "date", Value: bson.D{{Key: "$gte", Value: filter.Now}}})
	}
	if filter.Category != "" {
		query = append(query, bson.E{Key: "category", Value: filter.Category})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(filter.Limit))
	cursor, err := s.announcements.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]Announcement, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode announcements: %w", err)
	}
	return out, nil
}

func (s *MongoDBStore) GetAnnouncement(ctx context.Context, id string) (*Announcement, error) {
	var a Announcement
	if err := findByID(ctx, s.announcements, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoDBStore) InsertAnnouncement(ctx context.Context, a *Announcement) error {
	if _, err := s.announcements.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("failed to insert announcement: %w", err)
	}
	return nil
}

func (s *MongoDBStore) ReplaceAnnouncement(ctx context.Context, a *Announcement) error {
	res, err := s.announcements.ReplaceOne(ctx, bson.D{{Key: "_id", Value: a.ID}}, a)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) IsEmpty(ctx context.Context) (bool, error) {
	for _, coll := range []*mongo.Collection{s.faqs, s.announcements} {
		n, err := coll.CountDocuments(ctx, bson.D{}, options.Count().SetLimit(1))
		if err != nil {
			return false, fmt.Errorf("failed to count campus content: %w", err)
		}
		if n > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Close is a no-op; the client is managed by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}

func findByID(ctx context.Context, coll *mongo.Collection, id string, out any) error {
	err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", coll.Name(), err)
	}
	return nil
}
