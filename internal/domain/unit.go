package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Unit is a training unit: the scope a workout chat conversation works against.
// Every persisted workout belongs to exactly one unit.
type Unit struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID  `bson:"ownerId" json:"ownerId"`                     // student the unit belongs to
	CoachID     *primitive.ObjectID `bson:"coachId,omitempty" json:"coachId,omitempty"` // optional supervising coach
	Name        string              `bson:"name" json:"name"`                           // e.g., "Hypertrophy block"
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CanAccess reports whether the user may read or change the unit's workouts.
func (u *Unit) CanAccess(userID primitive.ObjectID) bool {
	if u.OwnerID == userID {
		return true
	}
	return u.CoachID != nil && *u.CoachID == userID
}
