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

const unitCollectionName = "units"

// mongoUnitRepository implements repository.UnitRepository
type mongoUnitRepository struct {
	collection *mongo.Collection
}

// NewMongoUnitRepository creates a new Unit repository.
func NewMongoUnitRepository(db *mongo.Database) repository.UnitRepository {
	return &mongoUnitRepository{
		collection: db.Collection(unitCollectionName),
	}
}

// Create inserts a new training unit.
func (r *mongoUnitRepository) Create(ctx context.Context, unit *domain.Unit) (primitive.ObjectID, error) {
	if unit.OwnerID == primitive.NilObjectID || unit.Name == "" {
		return primitive.NilObjectID, errors.New("unit requires ownerId and name")
	}
	unit.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	unit.CreatedAt = now
	unit.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, unit)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted unit ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single unit by its ID.
func (r *mongoUnitRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Unit, error) {
	var unit domain.Unit
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&unit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// GetByMemberID retrieves the units a user owns or coaches, newest first.
func (r *mongoUnitRepository) GetByMemberID(ctx context.Context, userID primitive.ObjectID) ([]domain.Unit, error) {
	var units []domain.Unit
	filter := bson.M{"$or": bson.A{
		bson.M{"ownerId": userID},
		bson.M{"coachId": userID},
	}}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &units); err != nil {
		return nil, err
	}
	return units, nil
}

func unitIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "coachId", Value: 1}},
			Options: options.Index().SetSparse(true), // not every unit has a coach
		},
	}
}
