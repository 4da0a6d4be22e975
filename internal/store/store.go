// Package store provides the durable memory storage interface and its
// SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/recallkit/recall/internal/model"
)

// ErrNotFound is returned when a record id is absent from the store.
// Read paths treat it as an empty result, not a failure.
var ErrNotFound = errors.New("memory not found")

// CreateParams holds the caller-supplied fields for a new memory.
type CreateParams struct {
	Content   string
	Owner     string
	Project   string
	Directory string
	Tags      []string
	Metadata  map[string]any
}

// SearchParams holds parameters for full-text search.
// Owner and Project are pushed into the SQL query rather than applied
// after the fact.
type SearchParams struct {
	Query   string
	Owner   string
	Project string
	Limit   int
}

// Store defines the durable memory storage interface.
type Store interface {
	// Create assigns an id and derived search text, persists the record
	// and returns it with timestamps set.
	Create(ctx context.Context, p CreateParams) (*model.Memory, error)

	// Get retrieves a record by id. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*model.Memory, error)

	// Update fully replaces the mutable fields of an existing record.
	// Fails when the id does not exist.
	Update(ctx context.Context, m *model.Memory) error

	// Delete removes a record. Absence of the id is not an error.
	Delete(ctx context.Context, id string) error

	// IncrementUse bumps use_count and refreshes last_used, returning
	// the updated record. Returns ErrNotFound when absent.
	IncrementUse(ctx context.Context, id string) (*model.Memory, error)

	// ListRecent orders by last_used falling back to created_at, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.Memory, error)

	// ListAll orders by created_at, newest first.
	ListAll(ctx context.Context, limit int) ([]model.Memory, error)

	// ListPopular orders by use_count then last_used descending and
	// excludes records never used.
	ListPopular(ctx context.Context, limit int) ([]model.Memory, error)

	// FullTextSearch ranks FTS matches by relevance. An empty query
	// matches nothing.
	FullTextSearch(ctx context.Context, p SearchParams) ([]model.Memory, error)

	// WarmLoad returns up to limit records ranked by recency-weighted
	// popularity: use_count for records used within the trailing window,
	// pure recency for the rest.
	WarmLoad(ctx context.Context, limit int, window time.Duration) ([]model.Memory, error)

	// IncrCounter bumps an engine-level counter in the auxiliary stats table.
	IncrCounter(ctx context.Context, key string) error

	// Counters returns all engine-level counters.
	Counters(ctx context.Context) (map[string]int64, error)

	// Stats returns database statistics.
	Stats(ctx context.Context) (*Stats, error)

	// ExportAll returns every record, optionally filtered by owner.
	ExportAll(ctx context.Context, owner string) ([]model.Memory, error)

	// Import bulk-loads records from an export, assigning fresh ids.
	Import(ctx context.Context, memories []model.Memory) (int, error)

	// Close closes the store.
	Close() error
}
