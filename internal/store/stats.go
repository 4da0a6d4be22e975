package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string           `json:"db_path"`
	DBSizeBytes   int64            `json:"db_size_bytes"`
	TotalMemories int              `json:"total_memories"`
	UsedMemories  int              `json:"used_memories"`
	Owners        []OwnerStats     `json:"owners,omitempty"`
	Counters      map[string]int64 `json:"counters,omitempty"`
}

// OwnerStats holds per-owner record counts.
type OwnerStats struct {
	Owner string `json:"owner"`
	Count int    `json:"count"`
}

// Stats returns database statistics, including engine-level counters.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE use_count > 0`).Scan(&st.UsedMemories)

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, COUNT(*) AS cnt
		FROM memories
		GROUP BY owner ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var o OwnerStats
		rows.Scan(&o.Owner, &o.Count)
		st.Owners = append(st.Owners, o)
	}

	counters, err := s.Counters(ctx)
	if err != nil {
		return st, err
	}
	if len(counters) > 0 {
		st.Counters = counters
	}

	return st, nil
}
