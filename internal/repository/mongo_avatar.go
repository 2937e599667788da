package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const avatarCollection = "generic_avatars"

// MongoAvatarRepository implements domain.AvatarRepository
type MongoAvatarRepository struct {
	collection *mongo.Collection
}

func NewMongoAvatarRepository(db *mongo.Database) *MongoAvatarRepository {
	coll := db.Collection(avatarCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// One record per (type, id)
	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "avatar_type", Value: 1}, {Key: "avatar_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoAvatarRepository{
		collection: coll,
	}
}

func keyFilter(key domain.AvatarKey) bson.M {
	return bson.M{"avatar_type": key.Type, "avatar_id": key.ID}
}

func (r *MongoAvatarRepository) GetByKey(ctx context.Context, key domain.AvatarKey) (*domain.AvatarRecord, error) {
	var record domain.AvatarRecord
	if err := r.collection.FindOne(ctx, keyFilter(key)).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get avatar %s: %w", key, err)
	}
	return &record, nil
}

// Upsert writes the record atomically; created_at is only set on insert
func (r *MongoAvatarRepository) Upsert(ctx context.Context, record *domain.AvatarRecord) error {
	now := time.Now().UTC()
	record.UpdatedAt = now

	key := domain.AvatarKey{Type: record.AvatarType, ID: record.AvatarID}
	update := bson.M{
		"$set": bson.M{
			"object_key": record.ObjectKey,
			"mime_type":  record.MimeType,
			"version":    record.Version,
			"size":       record.Size,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored domain.AvatarRecord
	if err := r.collection.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("failed to upsert avatar %s: %w", key, err)
	}

	record.ID = stored.ID
	record.CreatedAt = stored.CreatedAt
	return nil
}

func (r *MongoAvatarRepository) Delete(ctx context.Context, key domain.AvatarKey) error {
	result, err := r.collection.DeleteOne(ctx, keyFilter(key))
	if err != nil {
		return fmt.Errorf("failed to delete avatar %s: %w", key, err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListStale returns records whose avatar_type is not one of keepTypes, oldest first
func (r *MongoAvatarRepository) ListStale(ctx context.Context, keepTypes []string) ([]domain.AvatarRecord, error) {
	filter := bson.M{"avatar_type": bson.M{"$nin": keepTypes}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale avatars: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.AvatarRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode stale avatars: %w", err)
	}
	return records, nil
}
