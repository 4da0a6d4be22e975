// Package metrics records per-operation latency samples and cache
// hit/miss counters. Observability only, never on the correctness path.
package metrics

import (
	"sync"
	"time"
)

// windowSize is the per-operation sliding window: the most recent
// samples, oldest dropped first.
const windowSize = 100

// OpStats aggregates one operation's latency window, in milliseconds.
type OpStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min_ms"`
	Avg   float64 `json:"avg_ms"`
	Max   float64 `json:"max_ms"`
}

// CacheStats aggregates hit/miss counts across all cache tiers.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Recorder collects samples and counters. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	samples map[string][]time.Duration
	hits    uint64
	misses  uint64
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{samples: map[string][]time.Duration{}}
}

// Observe appends a latency sample for the named operation.
func (r *Recorder) Observe(op string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	window := append(r.samples[op], d)
	if len(window) > windowSize {
		window = window[len(window)-windowSize:]
	}
	r.samples[op] = window
}

// Hit records a cache hit on any tier.
func (r *Recorder) Hit() {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

// Miss records a lookup that fell through every cache tier.
func (r *Recorder) Miss() {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

// Stats returns min/avg/max/count per operation.
func (r *Recorder) Stats() map[string]OpStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]OpStats, len(r.samples))
	for op, window := range r.samples {
		if len(window) == 0 {
			continue
		}
		min, max, sum := window[0], window[0], time.Duration(0)
		for _, d := range window {
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
			sum += d
		}
		out[op] = OpStats{
			Count: len(window),
			Min:   roundMs(min),
			Avg:   roundMs(sum / time.Duration(len(window))),
			Max:   roundMs(max),
		}
	}
	return out
}

// Cache returns the combined hit/miss counters.
func (r *Recorder) Cache() CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs := CacheStats{Hits: r.hits, Misses: r.misses}
	if total := r.hits + r.misses; total > 0 {
		cs.HitRate = float64(r.hits) / float64(total)
	}
	return cs
}

func roundMs(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return float64(int(ms*100+0.5)) / 100
}
