// Package store defines the persistence interfaces for the generation
// pipeline: the durable cache tier and run records. Implementations exist
// for SQLite (local/dev) and Postgres (shared deployments).
package store

import (
	"context"
	"time"

	"github.com/sells-group/promo-cli/internal/model"
)

// CacheEntry is one durable cache record.
type CacheEntry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	HitCount  int64     `json:"hit_count"`
}

// Expired reports whether the entry is past its TTL at the given time.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// CacheStore is the durable cache tier. Expired entries are treated as
// absent by readers; sweeping them is housekeeping, not correctness.
type CacheStore interface {
	// GetEntry returns the entry for key, or (nil, nil) on a miss.
	// Implementations must not return expired entries.
	GetEntry(ctx context.Context, key string) (*CacheEntry, error)
	// SetEntry writes or replaces the entry for key with the given TTL.
	SetEntry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// TouchEntry increments the hit counter for key.
	TouchEntry(ctx context.Context, key string) error
	// DeleteExpired removes expired entries, returning how many were swept.
	DeleteExpired(ctx context.Context) (int, error)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID          string          `json:"id"`
	ProductName string          `json:"product_name"`
	Status      model.RunStatus `json:"status"`
	Result      []byte          `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RunStore persists pipeline runs for later inspection.
type RunStore interface {
	CreateRun(ctx context.Context, id, productName string) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SaveRunResult(ctx context.Context, runID string, status model.RunStatus, result []byte) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
}

// Store is the combined persistence interface.
type Store interface {
	CacheStore
	RunStore

	Migrate(ctx context.Context) error
	Close() error
}
