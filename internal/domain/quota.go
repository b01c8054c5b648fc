package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatQuota counts the chat messages a user sent on one UTC day.
type ChatQuota struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Day       string             `bson:"day" json:"day"` // YYYY-MM-DD, UTC
	Count     int                `bson:"count" json:"count"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// QuotaDay formats t as the quota bucket key.
func QuotaDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
