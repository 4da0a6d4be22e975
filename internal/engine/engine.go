// Package engine wires the durable store, cache tiers and fuzzy index
// into the memory engine consumed by the CLI layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/recallkit/recall/internal/cache"
	"github.com/recallkit/recall/internal/index"
	"github.com/recallkit/recall/internal/metrics"
	"github.com/recallkit/recall/internal/model"
	"github.com/recallkit/recall/internal/store"
)

// ErrInvalid marks a malformed input record, rejected before it reaches
// the durable store.
var ErrInvalid = errors.New("invalid memory")

// DefaultWarmWindow is the trailing window in which use counts dominate
// the warm-load ranking.
const DefaultWarmWindow = 7 * 24 * time.Hour

// Options configures a new Engine.
type Options struct {
	DBPath     string
	RedisURL   string          // empty disables the distributed tier
	CacheSize  int             // local cache bound; default cache.DefaultLocalSize
	WarmWindow time.Duration   // default DefaultWarmWindow
	Logger     *zerolog.Logger // nil disables logging
}

// Engine is the tiered storage-and-retrieval engine. The durable store
// is the single source of truth; local and distributed caches are
// advisory and disposable.
type Engine struct {
	store store.Store
	dist  cache.Distributed
	local *cache.Local
	perf  *metrics.Recorder
	log   zerolog.Logger

	// mu guards index, searchCache and gen. Mutations hold the write
	// lock through cache update, index rebuild and invalidation so the
	// sequence appears atomic to queries issued after the write returns.
	mu          sync.RWMutex
	index       *index.Index
	searchCache map[string][]model.Memory
	gen         uint64
}

// New opens the durable store, connects the distributed cache
// best-effort, warm-loads the local cache and builds the fuzzy index.
func New(ctx context.Context, opts Options) (*Engine, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	st, err := store.NewSQLiteStore(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = cache.DefaultLocalSize
	}
	local, err := cache.NewLocal(size)
	if err != nil {
		st.Close()
		return nil, err
	}

	e := &Engine{
		store:       st,
		local:       local,
		perf:        metrics.NewRecorder(),
		log:         log,
		searchCache: map[string][]model.Memory{},
	}

	// Connect returns nil when Redis is unreachable; the engine runs on
	// the remaining tiers with identical observable behavior.
	if r := cache.Connect(ctx, opts.RedisURL, log); r != nil {
		e.dist = r
	}

	e.warmLoad(ctx, size, opts.WarmWindow)
	return e, nil
}

// warmLoad populates the local cache with the most relevant records.
// A failure here costs latency, not correctness.
func (e *Engine) warmLoad(ctx context.Context, size int, window time.Duration) {
	start := time.Now()
	if window <= 0 {
		window = DefaultWarmWindow
	}

	memories, err := e.store.WarmLoad(ctx, size, window)
	if err != nil {
		e.log.Warn().Err(err).Msg("cache warm load failed")
		return
	}

	// Best-ranked last so they are the most recently used entries and
	// survive LRU eviction the longest.
	for i := len(memories) - 1; i >= 0; i-- {
		e.local.Put(memories[i].Clone())
	}

	e.mu.Lock()
	e.rebuildLocked()
	e.mu.Unlock()

	e.perf.Observe("cache_load", time.Since(start))
	e.log.Debug().Int("records", len(memories)).Msg("local cache warmed")
}

// Create validates and persists a new record, then populates every tier.
func (e *Engine) Create(ctx context.Context, p store.CreateParams) (*model.Memory, error) {
	start := time.Now()

	if strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Owner) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalid)
	}

	mem, err := e.store.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	e.applyWrite(mem)
	if e.dist != nil {
		e.dist.Set(ctx, mem)
	}
	if err := e.store.IncrCounter(ctx, "memories_created"); err != nil {
		e.log.Debug().Err(err).Msg("counter update failed")
	}

	e.perf.Observe("add_memory", time.Since(start))
	return mem.Clone(), nil
}

// Get retrieves a record by id, checking local cache, then distributed
// cache, then the durable store, backfilling upper tiers on a miss.
// Returns store.ErrNotFound when the id is absent everywhere.
func (e *Engine) Get(ctx context.Context, id string) (*model.Memory, error) {
	start := time.Now()

	if m, ok := e.local.Get(id); ok {
		e.perf.Hit()
		e.perf.Observe("get_memory_cache", time.Since(start))
		return m.Clone(), nil
	}

	if e.dist != nil {
		if m, ok := e.dist.Get(ctx, id); ok {
			e.backfill(m)
			e.perf.Hit()
			e.perf.Observe("get_memory_redis", time.Since(start))
			return m.Clone(), nil
		}
	}

	m, err := e.store.Get(ctx, id)
	if err != nil {
		e.perf.Miss()
		return nil, err
	}

	e.backfill(m)
	if e.dist != nil {
		e.dist.Set(ctx, m)
	}
	e.perf.Miss()
	e.perf.Observe("get_memory_db", time.Since(start))
	return m.Clone(), nil
}

// UpdateParams is a partial patch; nil fields are left unchanged.
// A non-nil Metadata replaces the caller-supplied metadata wholesale.
type UpdateParams struct {
	Content   *string
	Project   *string
	Directory *string
	Tags      []string
	Metadata  map[string]any
}

// Update applies a partial patch against the durable-store version of
// the record and writes the result through every tier.
func (e *Engine) Update(ctx context.Context, id string, p UpdateParams) (*model.Memory, error) {
	start := time.Now()

	mem, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Content != nil {
		mem.Content = *p.Content
	}
	if p.Project != nil {
		mem.Project = *p.Project
	}
	if p.Directory != nil {
		mem.Directory = *p.Directory
	}
	if p.Tags != nil {
		mem.Tags = p.Tags
	}
	if p.Metadata != nil {
		mem.Metadata = p.Metadata
	}
	if strings.TrimSpace(mem.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalid)
	}
	mem.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	if err := e.store.Update(ctx, mem); err != nil {
		return nil, err
	}

	e.applyWrite(mem)
	if e.dist != nil {
		e.dist.Set(ctx, mem)
	}

	e.perf.Observe("update_memory", time.Since(start))
	return mem.Clone(), nil
}

// Delete removes the record from every tier. Absence is not an error.
func (e *Engine) Delete(ctx context.Context, id string) error {
	start := time.Now()

	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}

	e.mu.Lock()
	e.local.Delete(id)
	e.rebuildLocked()
	e.mu.Unlock()

	if e.dist != nil {
		e.dist.Delete(ctx, id)
	}
	if err := e.store.IncrCounter(ctx, "memories_deleted"); err != nil {
		e.log.Debug().Err(err).Msg("counter update failed")
	}

	e.perf.Observe("delete_memory", time.Since(start))
	return nil
}

// IncrementUse bumps use tracking. Searchable text does not change, so
// the search cache and fuzzy index survive unless the refresh displaced
// a cached record.
func (e *Engine) IncrementUse(ctx context.Context, id string) (*model.Memory, error) {
	start := time.Now()

	mem, err := e.store.IncrementUse(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	_, existed := e.local.Get(id)
	evicted := e.local.Put(mem.Clone())
	if !existed || evicted {
		e.index = index.Build(e.local.Snapshot())
	}
	e.mu.Unlock()

	if e.dist != nil {
		e.dist.Set(ctx, mem)
	}

	e.perf.Observe("increment_use", time.Since(start))
	return mem.Clone(), nil
}

// ListRecent returns records ordered by last use, newest first.
func (e *Engine) ListRecent(ctx context.Context, limit int) ([]model.Memory, error) {
	start := time.Now()
	memories, err := e.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	e.perf.Observe("list_recent", time.Since(start))
	return memories, nil
}

// ListAll returns records ordered by creation time, newest first.
func (e *Engine) ListAll(ctx context.Context, limit int) ([]model.Memory, error) {
	start := time.Now()
	memories, err := e.store.ListAll(ctx, limit)
	if err != nil {
		return nil, err
	}
	e.perf.Observe("list_all", time.Since(start))
	return memories, nil
}

// ListPopular returns used records ordered by use count.
func (e *Engine) ListPopular(ctx context.Context, limit int) ([]model.Memory, error) {
	start := time.Now()
	memories, err := e.store.ListPopular(ctx, limit)
	if err != nil {
		return nil, err
	}
	e.perf.Observe("list_popular", time.Since(start))
	return memories, nil
}

// PerformanceStats returns per-operation latency aggregates.
func (e *Engine) PerformanceStats() map[string]metrics.OpStats {
	return e.perf.Stats()
}

// CacheStats reports hit/miss counters across all tiers plus the local
// cache size and process heap usage.
type CacheStats struct {
	metrics.CacheStats
	Size        int    `json:"size"`
	MemoryBytes uint64 `json:"memory_bytes"`
}

// CacheStats returns combined cache statistics.
func (e *Engine) CacheStats() CacheStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return CacheStats{
		CacheStats:  e.perf.Cache(),
		Size:        e.local.Len(),
		MemoryBytes: ms.HeapAlloc,
	}
}

// Stats returns durable-store statistics, including engine counters.
func (e *Engine) Stats(ctx context.Context) (*store.Stats, error) {
	return e.store.Stats(ctx)
}

// Export returns every durable record, optionally filtered by owner.
func (e *Engine) Export(ctx context.Context, owner string) ([]model.Memory, error) {
	return e.store.ExportAll(ctx, owner)
}

// Import bulk-loads records and rebuilds the derived state once at the end.
func (e *Engine) Import(ctx context.Context, memories []model.Memory) (int, error) {
	n, err := e.store.Import(ctx, memories)
	if n > 0 {
		e.mu.Lock()
		e.rebuildLocked()
		e.mu.Unlock()
	}
	return n, err
}

// Close releases the distributed cache connection and the store.
func (e *Engine) Close() error {
	if e.dist != nil {
		e.dist.Close()
	}
	return e.store.Close()
}

// applyWrite routes a successful durable write through the local tier
// and invalidates everything derived from it.
func (e *Engine) applyWrite(m *model.Memory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.Put(m.Clone())
	e.rebuildLocked()
}

// backfill populates the local tier after a read miss. Cached query
// results stay valid: no durable state changed.
func (e *Engine) backfill(m *model.Memory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local.Put(m.Clone())
	e.index = index.Build(e.local.Snapshot())
}

// rebuildLocked rebuilds the fuzzy index from the local cache and drops
// all cached query results. Callers hold mu.
func (e *Engine) rebuildLocked() {
	e.index = index.Build(e.local.Snapshot())
	e.searchCache = map[string][]model.Memory{}
	e.gen++
}
