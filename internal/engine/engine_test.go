package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/recallkit/recall/internal/model"
	"github.com/recallkit/recall/internal/store"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(t.TempDir(), "test.db")
	}
	e, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// stubDist is an in-memory Distributed tier. With down=true every call
// degrades to a miss, simulating an unreachable server.
type stubDist struct {
	data map[string]*model.Memory
	down bool
}

func newStubDist() *stubDist {
	return &stubDist{data: map[string]*model.Memory{}}
}

func (s *stubDist) Get(ctx context.Context, id string) (*model.Memory, bool) {
	if s.down {
		return nil, false
	}
	m, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

func (s *stubDist) Set(ctx context.Context, m *model.Memory) {
	if !s.down {
		s.data[m.ID] = m.Clone()
	}
}

func (s *stubDist) Delete(ctx context.Context, id string) {
	if !s.down {
		delete(s.data, id)
	}
}

func (s *stubDist) Close() error { return nil }

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	mem, err := e.Create(ctx, store.CreateParams{
		Content:  "rotate API keys monthly",
		Owner:    "alice",
		Project:  "infra",
		Tags:     []string{"security"},
		Metadata: map[string]any{"category": "ops"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := e.Get(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != mem.Content || got.Owner != mem.Owner || got.Project != mem.Project {
		t.Errorf("got %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "security" {
		t.Errorf("tags: %v", got.Tags)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	if _, err := e.Create(ctx, store.CreateParams{Content: "  ", Owner: "alice"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for empty content, got %v", err)
	}
	if _, err := e.Create(ctx, store.CreateParams{Content: "x", Owner: ""}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for empty owner, got %v", err)
	}
}

func TestGetBackfillsTiers(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	dist := newStubDist()
	e.dist = dist

	mem, _ := e.Create(ctx, store.CreateParams{Content: "x", Owner: "o"})

	// Evict from both cache tiers; the durable store must still serve it.
	e.local.Delete(mem.ID)
	dist.Delete(ctx, mem.ID)

	got, err := e.Get(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "x" {
		t.Errorf("got %q", got.Content)
	}
	// Miss backfilled the upper tiers.
	if _, ok := e.local.Get(mem.ID); !ok {
		t.Error("expected local backfill")
	}
	if _, ok := dist.Get(ctx, mem.ID); !ok {
		t.Error("expected distributed backfill")
	}
}

func TestDeleteRemovesEveryTier(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	dist := newStubDist()
	e.dist = dist

	mem, _ := e.Create(ctx, store.CreateParams{Content: "x", Owner: "o"})

	if err := e.Delete(ctx, mem.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, ok := e.local.Get(mem.ID); ok {
		t.Error("still in local cache")
	}
	if _, ok := dist.Get(ctx, mem.ID); ok {
		t.Error("still in distributed cache")
	}
	if _, err := e.Get(ctx, mem.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Idempotent: second delete is not an error.
	if err := e.Delete(ctx, mem.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestUpdateCacheCoherence(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})
	dist := newStubDist()
	e.dist = dist

	mem, _ := e.Create(ctx, store.CreateParams{Content: "before", Owner: "o"})

	after := "after"
	if _, err := e.Update(ctx, mem.ID, UpdateParams{Content: &after}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Served by the local tier.
	got, _ := e.Get(ctx, mem.ID)
	if got.Content != "after" {
		t.Errorf("local tier: got %q", got.Content)
	}

	// Served by the distributed tier.
	e.local.Delete(mem.ID)
	got, _ = e.Get(ctx, mem.ID)
	if got.Content != "after" {
		t.Errorf("distributed tier: got %q", got.Content)
	}

	// Served by the durable store.
	e.local.Delete(mem.ID)
	dist.Delete(ctx, mem.ID)
	got, _ = e.Get(ctx, mem.ID)
	if got.Content != "after" {
		t.Errorf("durable store: got %q", got.Content)
	}
}

func TestUpdateMissing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	c := "x"
	if _, err := e.Update(ctx, "ghost", UpdateParams{Content: &c}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIncrementUse(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	mem, _ := e.Create(ctx, store.CreateParams{Content: "x", Owner: "o"})

	got, err := e.IncrementUse(ctx, mem.ID)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got.UseCount != 1 || got.LastUsed == nil {
		t.Errorf("got %+v", got)
	}

	// The bump is visible from the local tier too.
	cached, _ := e.Get(ctx, mem.ID)
	if cached.UseCount != 1 {
		t.Errorf("local tier stale: use_count %d", cached.UseCount)
	}
}

func TestIncrementUseKeepsSearchCache(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	mem, _ := e.Create(ctx, store.CreateParams{Content: "deploy checklist", Owner: "o"})

	if _, err := e.Search(ctx, "deploy", SearchOptions{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(e.searchCache) != 1 {
		t.Fatalf("expected 1 cached result set, got %d", len(e.searchCache))
	}

	// Use tracking changes no searchable text; the cache survives.
	e.IncrementUse(ctx, mem.ID)
	if len(e.searchCache) != 1 {
		t.Error("expected search cache preserved after use tracking")
	}

	// A real mutation clears it wholesale.
	e.Create(ctx, store.CreateParams{Content: "y", Owner: "o"})
	if len(e.searchCache) != 0 {
		t.Error("expected search cache cleared after create")
	}
}

func TestWarmLoadRespectsCap(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "warm.db")

	e := newTestEngine(t, Options{DBPath: dbPath, CacheSize: 10})

	var hot *model.Memory
	for i := 0; i < 15; i++ {
		m, err := e.Create(ctx, store.CreateParams{
			Content: fmt.Sprintf("note %d", i),
			Owner:   "alice",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if i == 0 {
			hot = m
		}
	}
	// The first record is also the most used one.
	for i := 0; i < 5; i++ {
		e.IncrementUse(ctx, hot.ID)
	}
	e.Close()

	reopened := newTestEngine(t, Options{DBPath: dbPath, CacheSize: 10})
	if reopened.local.Len() > 10 {
		t.Errorf("expected at most 10 warm records, got %d", reopened.local.Len())
	}
	if _, ok := reopened.local.Get(hot.ID); !ok {
		t.Error("expected the popular record to be warm-loaded")
	}
}

func TestDistributedCacheOutageIsInvisible(t *testing.T) {
	ctx := context.Background()

	run := func(e *Engine) []string {
		var out []string

		a, err := e.Create(ctx, store.CreateParams{Content: "alpha note", Owner: "o", Tags: []string{"t1"}})
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		got, _ := e.Get(ctx, a.ID)
		out = append(out, got.Content)

		patched := "alpha note v2"
		upd, _ := e.Update(ctx, a.ID, UpdateParams{Content: &patched})
		out = append(out, upd.Content)

		used, _ := e.IncrementUse(ctx, a.ID)
		out = append(out, fmt.Sprintf("uses=%d", used.UseCount))

		results, _ := e.Search(ctx, "alpha", SearchOptions{})
		out = append(out, fmt.Sprintf("hits=%d", len(results)))

		e.Delete(ctx, a.ID)
		if _, err := e.Get(ctx, a.ID); errors.Is(err, store.ErrNotFound) {
			out = append(out, "gone")
		}
		return out
	}

	healthy := newTestEngine(t, Options{})
	healthy.dist = newStubDist()

	outage := newTestEngine(t, Options{})
	down := newStubDist()
	down.down = true
	outage.dist = down

	disabled := newTestEngine(t, Options{})

	want := run(healthy)
	for name, got := range map[string][]string{"outage": run(outage), "disabled": run(disabled)} {
		if len(got) != len(want) {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s: step %d got %q, want %q", name, i, got[i], want[i])
			}
		}
	}
}

func TestCountersPersist(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	a, _ := e.Create(ctx, store.CreateParams{Content: "x", Owner: "o"})
	e.Create(ctx, store.CreateParams{Content: "y", Owner: "o"})
	e.Delete(ctx, a.ID)

	st, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Counters["memories_created"] != 2 {
		t.Errorf("created: got %d", st.Counters["memories_created"])
	}
	if st.Counters["memories_deleted"] != 1 {
		t.Errorf("deleted: got %d", st.Counters["memories_deleted"])
	}
}

func TestCacheStats(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	mem, _ := e.Create(ctx, store.CreateParams{Content: "x", Owner: "o"})
	e.Get(ctx, mem.ID) // local hit
	e.local.Delete(mem.ID)
	e.Get(ctx, mem.ID) // falls through to the store

	cs := e.CacheStats()
	if cs.Hits != 1 || cs.Misses != 1 {
		t.Errorf("hits/misses: %+v", cs.CacheStats)
	}
	if cs.Size != e.local.Len() {
		t.Errorf("size: got %d", cs.Size)
	}
}

func TestPerformanceStats(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, Options{})

	mem, _ := e.Create(ctx, store.CreateParams{Content: "x", Owner: "o"})
	e.Get(ctx, mem.ID)

	stats := e.PerformanceStats()
	if stats["add_memory"].Count != 1 {
		t.Errorf("add_memory: %+v", stats["add_memory"])
	}
	if stats["get_memory_cache"].Count != 1 {
		t.Errorf("get_memory_cache: %+v", stats["get_memory_cache"])
	}
}
