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

const planArchiveCollectionName = "plan_archives"

// mongoPlanArchiveRepository implements repository.PlanArchiveRepository
type mongoPlanArchiveRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanArchiveRepository creates a new PlanArchive repository backed by MongoDB.
func NewMongoPlanArchiveRepository(db *mongo.Database) repository.PlanArchiveRepository {
	return &mongoPlanArchiveRepository{
		collection: db.Collection(planArchiveCollectionName),
	}
}

// Create inserts archive metadata into the database.
func (r *mongoPlanArchiveRepository) Create(ctx context.Context, archive *domain.PlanArchive) (primitive.ObjectID, error) {
	if archive.UnitID == primitive.NilObjectID ||
		archive.OwnerID == primitive.NilObjectID ||
		archive.S3ObjectKey == "" {
		return primitive.NilObjectID, errors.New("plan archive requires unitId, ownerId, and s3ObjectKey")
	}

	archive.ID = primitive.NewObjectID()
	archive.ArchivedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, archive)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves archive metadata by its ID.
func (r *mongoPlanArchiveRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanArchive, error) {
	var archive domain.PlanArchive
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&archive)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &archive, nil
}

// ListByUnitID lists a unit's archives newer than since, newest first.
func (r *mongoPlanArchiveRepository) ListByUnitID(ctx context.Context, unitID primitive.ObjectID, since time.Time) ([]domain.PlanArchive, error) {
	var archives []domain.PlanArchive
	filter := bson.M{"unitId": unitID, "archivedAt": bson.M{"$gte": since}}
	findOptions := options.Find().SetSort(bson.D{{Key: "archivedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &archives); err != nil {
		return nil, err
	}
	return archives, nil
}

func planArchiveIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "unitId", Value: 1}, {Key: "archivedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "s3ObjectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
}
