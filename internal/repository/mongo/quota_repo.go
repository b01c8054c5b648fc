package mongo

import (
	"alcyxob/workout-chat/internal/domain"
	"alcyxob/workout-chat/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const quotaCollectionName = "chat_quotas"

// mongoQuotaRepository implements repository.QuotaRepository with one document per user and day.
type mongoQuotaRepository struct {
	collection *mongo.Collection
}

// NewMongoQuotaRepository creates a new quota repository.
func NewMongoQuotaRepository(db *mongo.Database) repository.QuotaRepository {
	return &mongoQuotaRepository{
		collection: db.Collection(quotaCollectionName),
	}
}

// Increment atomically bumps the day's counter, creating the document on first use.
func (r *mongoQuotaRepository) Increment(ctx context.Context, userID primitive.ObjectID, day string) (int, error) {
	filter := bson.M{"userId": userID, "day": day}
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var quota domain.ChatQuota
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&quota); err != nil {
		return 0, err
	}
	return quota.Count, nil
}

// Get returns the day's counter; a missing document counts as zero.
func (r *mongoQuotaRepository) Get(ctx context.Context, userID primitive.ObjectID, day string) (int, error) {
	var quota domain.ChatQuota
	err := r.collection.FindOne(ctx, bson.M{"userId": userID, "day": day}).Decode(&quota)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return quota.Count, nil
}

func quotaIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "day", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Old counters are useless after a few days.
			Keys:    bson.D{{Key: "updatedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32((7 * 24 * time.Hour).Seconds())),
		},
	}
}
