package repository

import (
	"alcyxob/workout-chat/internal/domain"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicateKey = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// UnitRepository defines the interface for training units.
type UnitRepository interface {
	Create(ctx context.Context, unit *domain.Unit) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Unit, error)
	GetByMemberID(ctx context.Context, userID primitive.ObjectID) ([]domain.Unit, error) // owner or coach
}

// WorkoutRepository defines the interface for interacting with workout data.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
	GetByUnitID(ctx context.Context, unitID primitive.ObjectID) ([]domain.Workout, error) // ordered by sequence
	GetByTitle(ctx context.Context, unitID primitive.ObjectID, title string) (*domain.Workout, error)
	Update(ctx context.Context, workout *domain.Workout) error
	Delete(ctx context.Context, id, unitID primitive.ObjectID) error
}

// QuotaRepository tracks daily chat usage per user.
type QuotaRepository interface {
	// Increment bumps the counter for (userID, day) and returns the new count.
	Increment(ctx context.Context, userID primitive.ObjectID, day string) (int, error)
	Get(ctx context.Context, userID primitive.ObjectID, day string) (int, error)
}

// PlanArchiveRepository stores metadata for plans archived to object storage.
type PlanArchiveRepository interface {
	Create(ctx context.Context, archive *domain.PlanArchive) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanArchive, error)
	ListByUnitID(ctx context.Context, unitID primitive.ObjectID, since time.Time) ([]domain.PlanArchive, error)
}
