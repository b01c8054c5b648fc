package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// PlanStorage stores archived plan documents in object storage.
type PlanStorage interface {
	// PutObject writes body under objectKey.
	PutObject(ctx context.Context, objectKey, contentType string, body []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading an archived plan directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

// PlanObjectKey returns a fresh key for an archived plan of unitID.
func PlanObjectKey(unitID string, at time.Time) string {
	return fmt.Sprintf("plans/%s/%s-%s.json", unitID, at.UTC().Format("20060102T150405Z"), uuid.NewString())
}
