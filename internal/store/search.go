package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/recallkit/recall/internal/model"
)

// FullTextSearch ranks FTS5 matches by bm25 relevance. Owner and project
// filters are pushed into the query. An empty query matches nothing
// rather than falling back to a full scan.
func (s *SQLiteStore) FullTextSearch(ctx context.Context, p SearchParams) ([]model.Memory, error) {
	match := ftsQuery(p.Query)
	if match == "" {
		return nil, nil
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"memories_fts MATCH ?"}
	args := []any{match}

	if p.Owner != "" {
		where = append(where, "m.owner = ?")
		args = append(args, p.Owner)
	}
	if p.Project != "" {
		where = append(where, "m.project = ?")
		args = append(args, p.Project)
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.content, m.owner, m.created_at, m.updated_at,
		       m.project, m.directory, m.tags, m.metadata, m.use_count, m.last_used
		FROM memories m
		JOIN memories_fts ON m.rowid = memories_fts.rowid
		WHERE %s
		ORDER BY bm25(memories_fts)
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	return s.queryMemories(ctx, query, args...)
}

// ftsQuery turns free text into an FTS5 match expression. Each token is
// quoted so user input cannot inject FTS syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}
