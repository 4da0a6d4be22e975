package engine

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/recallkit/recall/internal/model"
	"github.com/recallkit/recall/internal/store"
)

// DefaultSearchLimit applies when a query specifies no limit.
const DefaultSearchLimit = 50

// SearchOptions controls strategy selection, filtering and pagination.
type SearchOptions struct {
	// Exact routes the query to full-text search against the durable
	// store. The default is fuzzy matching over the hot working set.
	Exact           bool
	Owner           string
	Project         string
	Directory       string
	Tags            []string // any-of match against the record's tag set
	Limit           int      // default DefaultSearchLimit; applied after filters
	IncludeArchived bool
}

// Search is the single entry point for text queries. It picks a
// strategy, applies post-filters, enforces the limit and caches the
// result set verbatim until the next mutation.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]model.Memory, error) {
	start := time.Now()

	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	if len(opts.Tags) > 0 {
		tags := make([]string, len(opts.Tags))
		copy(tags, opts.Tags)
		sort.Strings(tags)
		opts.Tags = tags
	}
	key := searchCacheKey(query, opts)

	e.mu.RLock()
	cached, ok := e.searchCache[key]
	ix := e.index
	gen := e.gen
	e.mu.RUnlock()

	if ok {
		e.perf.Hit()
		e.perf.Observe("search_cache", time.Since(start))
		return cloneMemories(cached), nil
	}

	var candidates []model.Memory
	if !opts.Exact && ix.Len() > 0 {
		for _, m := range ix.Search(query, 0) {
			candidates = append(candidates, *m.Clone())
		}
	} else {
		found, err := e.store.FullTextSearch(ctx, store.SearchParams{
			Query:   query,
			Owner:   opts.Owner,
			Project: opts.Project,
			Limit:   opts.Limit,
		})
		if err != nil {
			return nil, err
		}
		candidates = found
	}

	results := applyFilters(candidates, opts)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	if results == nil {
		results = []model.Memory{}
	}

	// Store only if no mutation invalidated the cache while this query
	// was computing; a stale result set must never outlive a mutation.
	e.mu.Lock()
	if e.gen == gen {
		e.searchCache[key] = results
	}
	e.mu.Unlock()

	e.perf.Miss()
	e.perf.Observe("search", time.Since(start))
	return cloneMemories(results), nil
}

// applyFilters runs the uniform post-filters over candidates from either
// strategy. Owner and project are pushed into the full-text query as
// well, but filtering here keeps both paths equivalent.
func applyFilters(candidates []model.Memory, opts SearchOptions) []model.Memory {
	var out []model.Memory
	for _, m := range candidates {
		if opts.Owner != "" && m.Owner != opts.Owner {
			continue
		}
		if opts.Project != "" && m.Project != opts.Project {
			continue
		}
		if opts.Directory != "" && m.Directory != opts.Directory {
			continue
		}
		if len(opts.Tags) > 0 && !hasAnyTag(m.Tags, opts.Tags) {
			continue
		}
		if !opts.IncludeArchived && m.Archived() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasAnyTag(recordTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range recordTags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// searchCacheKey is the full normalized (query, options) pair.
func searchCacheKey(query string, opts SearchOptions) string {
	k := struct {
		Query string
		Opts  SearchOptions
	}{strings.TrimSpace(query), opts}
	b, _ := json.Marshal(k)
	return string(b)
}

func cloneMemories(memories []model.Memory) []model.Memory {
	out := make([]model.Memory, len(memories))
	for i := range memories {
		out[i] = *memories[i].Clone()
	}
	return out
}
