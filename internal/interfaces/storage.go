package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/driveline/jobfeed/internal/models"
)

// ErrKeyNotFound is returned when a KV key does not exist
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair represents a stored key/value entry
type KeyValuePair struct {
	Key         string    `badgerhold:"key" json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage provides key/value persistence for API keys and settings
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, description string) error
	Delete(ctx context.Context, key string) error
	GetAll(ctx context.Context) (map[string]string, error)
}

// JobStorage is the read/write interface over the persistent job table.
type JobStorage interface {
	// GetByIDs returns stored rows for the given job ids updated within the
	// freshness window. A zero window means no recency constraint.
	GetByIDs(ctx context.Context, ids []string, window time.Duration) ([]models.StoreJob, error)

	// Search returns rows matching the query, ordered by recency.
	Search(ctx context.Context, query models.StoreQuery) ([]models.StoreJob, error)

	// Upsert writes rows keyed on JobID, preserving CreatedAt on updates.
	Upsert(ctx context.Context, rows []models.StoreJob) error

	// RefreshTimestamps sets UpdatedAt to now for the given job ids.
	RefreshTimestamps(ctx context.Context, ids []string) error

	// Count returns the total number of stored jobs.
	Count(ctx context.Context) (int, error)
}

// StorageManager provides access to all storage services
type StorageManager interface {
	JobStorage() JobStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
