package store

import (
	"context"

	"github.com/recallkit/recall/internal/model"
)

// ExportAll returns every record, optionally filtered by owner.
func (s *SQLiteStore) ExportAll(ctx context.Context, owner string) ([]model.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories`
	args := []any{}
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at`

	return s.queryMemories(ctx, query, args...)
}

// Import stores records from an export, assigning fresh ids. Use counts
// and timestamps restart; the content fields are preserved.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	imported := 0
	for _, m := range memories {
		_, err := s.Create(ctx, CreateParams{
			Content:   m.Content,
			Owner:     m.Owner,
			Project:   m.Project,
			Directory: m.Directory,
			Tags:      m.Tags,
			Metadata:  m.Metadata,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
