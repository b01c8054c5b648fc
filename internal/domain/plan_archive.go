package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanArchive stores metadata about a processed plan whose JSON body was written to S3.
type PlanArchive struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UnitID      primitive.ObjectID `bson:"unitId" json:"unitId"`
	OwnerID     primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	S3ObjectKey string             `bson:"s3ObjectKey" json:"-"` // internal use
	Action      PlanAction         `bson:"action" json:"action"`
	Size        int64              `bson:"size" json:"size"`
	ArchivedAt  time.Time          `bson:"archivedAt" json:"archivedAt"`
}
