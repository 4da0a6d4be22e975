// Package cache provides the process-local and distributed cache tiers.
// Neither tier is authoritative; the durable store always wins.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/recallkit/recall/internal/model"
)

// DefaultLocalSize bounds the process-local tier. It doubles as the
// warm-load cap at startup.
const DefaultLocalSize = 1000

// Local is the in-process tier: a bounded LRU so memory stays flat while
// recently read or written records are always resident.
type Local struct {
	lru *lru.Cache[string, *model.Memory]
}

// NewLocal creates a local cache holding at most size records.
func NewLocal(size int) (*Local, error) {
	if size <= 0 {
		size = DefaultLocalSize
	}
	c, err := lru.New[string, *model.Memory](size)
	if err != nil {
		return nil, err
	}
	return &Local{lru: c}, nil
}

// Get returns the cached record, if present.
func (l *Local) Get(id string) (*model.Memory, bool) {
	return l.lru.Get(id)
}

// Put inserts or refreshes a record. It reports whether an older entry
// was evicted to make room.
func (l *Local) Put(m *model.Memory) (evicted bool) {
	return l.lru.Add(m.ID, m)
}

// Delete removes a record by id.
func (l *Local) Delete(id string) {
	l.lru.Remove(id)
}

// Len returns the number of cached records.
func (l *Local) Len() int {
	return l.lru.Len()
}

// Snapshot returns the current contents without disturbing recency order.
func (l *Local) Snapshot() []*model.Memory {
	keys := l.lru.Keys()
	out := make([]*model.Memory, 0, len(keys))
	for _, k := range keys {
		if m, ok := l.lru.Peek(k); ok {
			out = append(out, m)
		}
	}
	return out
}
