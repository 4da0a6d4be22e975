package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/recallkit/recall/internal/model"
)

// SQLiteStore implements Store using SQLite with an FTS5 index.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Single writer avoids SQLITE_BUSY under concurrent goroutines.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		content     TEXT NOT NULL,
		owner       TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		project     TEXT,
		directory   TEXT,
		tags        TEXT,
		metadata    TEXT,
		search_text TEXT NOT NULL,
		use_count   INTEGER NOT NULL DEFAULT 0,
		last_used   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner);
	CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project);
	CREATE INDEX IF NOT EXISTS idx_memories_directory ON memories(directory);
	CREATE INDEX IF NOT EXISTS idx_memories_last_used ON memories(last_used DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_use_count ON memories(use_count DESC);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		content, tags, metadata,
		content=memories,
		content_rowid=rowid
	);

	CREATE TABLE IF NOT EXISTS engine_stats (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 triggers keep the index row count and content in sync with the
	// base table; ranked search silently degrades without them.
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, content, tags, metadata)
			VALUES (new.rowid, new.content, new.tags, new.metadata);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags, metadata)
			VALUES ('delete', old.rowid, old.content, old.tags, old.metadata);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags, metadata)
			VALUES ('delete', old.rowid, old.content, old.tags, old.metadata);
			INSERT INTO memories_fts(rowid, content, tags, metadata)
			VALUES (new.rowid, new.content, new.tags, new.metadata);
		END`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return err
		}
	}

	return nil
}

// searchText derives the indexed text from the searchable fields.
// It is never returned to callers.
func searchText(content string, tags []string, category string) string {
	parts := []string{content}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	if category != "" {
		parts = append(parts, category)
	}
	return strings.Join(parts, " ")
}

func (s *SQLiteStore) Create(ctx context.Context, p CreateParams) (*model.Memory, error) {
	// Truncate to the stored RFC3339 precision so the in-memory record
	// and the persisted row stay field-for-field equal.
	now := time.Now().UTC().Truncate(time.Second)
	id := s.newID()

	mem := &model.Memory{
		ID:        id,
		Content:   p.Content,
		Owner:     p.Owner,
		CreatedAt: now,
		UpdatedAt: now,
		Project:   p.Project,
		Directory: p.Directory,
		Tags:      p.Tags,
		Metadata:  p.Metadata,
	}

	tagsJSON, metaJSON := encodeJSONFields(mem.Tags, mem.Metadata)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, owner, created_at, updated_at,
		                       project, directory, tags, metadata, search_text, use_count, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
		id, mem.Content, mem.Owner,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
		nullable(mem.Project), nullable(mem.Directory), tagsJSON, metaJSON,
		searchText(mem.Content, mem.Tags, mem.Category()))
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	return mem, nil
}

const memoryColumns = `id, content, owner, created_at, updated_at,
	project, directory, tags, metadata, use_count, last_used`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) Update(ctx context.Context, m *model.Memory) error {
	tagsJSON, metaJSON := encodeJSONFields(m.Tags, m.Metadata)

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET
			content = ?, updated_at = ?, project = ?, directory = ?,
			tags = ?, metadata = ?, search_text = ?
		 WHERE id = ?`,
		m.Content, m.UpdatedAt.UTC().Format(time.RFC3339),
		nullable(m.Project), nullable(m.Directory), tagsJSON, metaJSON,
		searchText(m.Content, m.Tags, m.Category()), m.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update memory %s: no such id", m.ID)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IncrementUse(ctx context.Context, id string) (*model.Memory, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET use_count = use_count + 1, last_used = ? WHERE id = ?`,
		now, id)
	if err != nil {
		return nil, fmt.Errorf("increment use: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 ORDER BY COALESCE(last_used, created_at) DESC
		 LIMIT ?`, limit)
}

func (s *SQLiteStore) ListAll(ctx context.Context, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
}

func (s *SQLiteStore) ListPopular(ctx context.Context, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE use_count > 0
		 ORDER BY use_count DESC, last_used DESC
		 LIMIT ?`, limit)
}

func (s *SQLiteStore) WarmLoad(ctx context.Context, limit int, window time.Duration) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 1000
	}
	cutoff := time.Now().UTC().Add(-window).Format(time.RFC3339)
	return s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 ORDER BY
			CASE WHEN last_used IS NOT NULL AND last_used > ? THEN use_count ELSE 0 END DESC,
			COALESCE(last_used, created_at) DESC
		 LIMIT ?`, cutoff, limit)
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *SQLiteStore) IncrCounter(ctx context.Context, key string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO engine_stats (key, value, updated_at) VALUES (?, '1', ?)
		 ON CONFLICT(key) DO UPDATE SET
			value = CAST(value AS INTEGER) + 1,
			updated_at = excluded.updated_at`,
		key, now)
	if err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Counters(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, CAST(value AS INTEGER) FROM engine_stats`)
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}
	defer rows.Close()

	counters := map[string]int64{}
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		counters[key] = value
	}
	return counters, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var project, directory, tagsJSON, metaJSON, lastUsed sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&m.ID, &m.Content, &m.Owner, &createdAt, &updatedAt,
		&project, &directory, &tagsJSON, &metaJSON, &m.UseCount, &lastUsed,
	)
	if err != nil {
		return m, err
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if project.Valid {
		m.Project = project.String
	}
	if directory.Valid {
		m.Directory = directory.String
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	if metaJSON.Valid {
		json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
	}
	if lastUsed.Valid {
		t, _ := time.Parse(time.RFC3339, lastUsed.String)
		m.LastUsed = &t
	}

	return m, nil
}

func encodeJSONFields(tags []string, metadata map[string]any) (tagsJSON, metaJSON *string) {
	if len(tags) > 0 {
		b, _ := json.Marshal(tags)
		s := string(b)
		tagsJSON = &s
	}
	if len(metadata) > 0 {
		b, _ := json.Marshal(metadata)
		s := string(b)
		metaJSON = &s
	}
	return tagsJSON, metaJSON
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
