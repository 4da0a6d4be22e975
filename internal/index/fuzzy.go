// Package index implements the in-memory fuzzy index over the
// process-local cache contents. It covers hot records only, not the
// full durable store.
package index

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/recallkit/recall/internal/model"
)

// Field weights, highest for content. Tags and category contribute but
// never outrank a content match on their own.
const (
	contentWeight  = 0.7
	tagsWeight     = 0.2
	categoryWeight = 0.1
)

// Index is an immutable fuzzy index. Mutations rebuild it wholesale;
// at the bounded cache size a rebuild stays interactive.
type Index struct {
	records    []*model.Memory
	contents   []string
	tags       []string
	categories []string
}

// Build constructs an index over a snapshot of cached records.
func Build(records []*model.Memory) *Index {
	ix := &Index{
		records:    records,
		contents:   make([]string, len(records)),
		tags:       make([]string, len(records)),
		categories: make([]string, len(records)),
	}
	for i, m := range records {
		ix.contents[i] = m.Content
		ix.tags[i] = strings.Join(m.Tags, " ")
		ix.categories[i] = m.Category()
	}
	return ix
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.records)
}

// Search returns records matching the query tolerantly, best first.
// The similarity score orders results but is not exposed.
func (ix *Index) Search(query string, limit int) []*model.Memory {
	if ix == nil || strings.TrimSpace(query) == "" {
		return nil
	}

	scores := map[int]float64{}
	accumulate := func(targets []string, weight float64) {
		for _, m := range fuzzy.Find(query, targets) {
			scores[m.Index] += weight * float64(m.Score)
		}
	}
	accumulate(ix.contents, contentWeight)
	accumulate(ix.tags, tagsWeight)
	accumulate(ix.categories, categoryWeight)

	matched := make([]int, 0, len(scores))
	for i := range scores {
		matched = append(matched, i)
	}
	sort.Slice(matched, func(a, b int) bool {
		if scores[matched[a]] != scores[matched[b]] {
			return scores[matched[a]] > scores[matched[b]]
		}
		return matched[a] < matched[b]
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*model.Memory, len(matched))
	for i, idx := range matched {
		out[i] = ix.records[idx]
	}
	return out
}
