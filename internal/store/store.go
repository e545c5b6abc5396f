package store

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

// DataStore defines the interface for persistent storage of upload records.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Upload operations
	RecordUpload(ctx context.Context, rec *models.UploadRecord) error
	GetUpload(ctx context.Context, cid string) (*models.UploadRecord, error)
	ListUploads(ctx context.Context, limit, offset int) ([]models.UploadRecord, int, error)
	CountUploads(ctx context.Context) (int64, error)
	GetMostRecentUpload(ctx context.Context) (*time.Time, error)
}

// prepare fills the ID and timestamp of a record about to be inserted.
func prepare(rec *models.UploadRecord) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}
