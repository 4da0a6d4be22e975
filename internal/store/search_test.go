package store

import (
	"context"
	"testing"
)

func TestFullTextSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, CreateParams{Content: "rotate API keys monthly", Owner: "alice", Tags: []string{"security"}})
	s.Create(ctx, CreateParams{Content: "deploy with blue-green strategy", Owner: "alice"})
	s.Create(ctx, CreateParams{Content: "rotate log files weekly", Owner: "bob"})

	results, err := s.FullTextSearch(ctx, SearchParams{Query: "rotate keys"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Content != "rotate API keys monthly" {
		t.Errorf("got %q", results[0].Content)
	}
}

func TestFullTextSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, CreateParams{Content: "something", Owner: "o"})

	results, err := s.FullTextSearch(ctx, SearchParams{Query: "   "})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty query must match nothing, got %d results", len(results))
	}
}

func TestFullTextSearchOwnerFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, CreateParams{Content: "rotate API keys", Owner: "alice"})
	s.Create(ctx, CreateParams{Content: "rotate backup keys", Owner: "bob"})

	results, err := s.FullTextSearch(ctx, SearchParams{Query: "rotate", Owner: "alice"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Owner != "alice" {
		t.Errorf("expected only alice's record, got %+v", ids(results))
	}

	none, _ := s.FullTextSearch(ctx, SearchParams{Query: "rotate", Owner: "carol"})
	if len(none) != 0 {
		t.Errorf("expected empty for carol, got %d", len(none))
	}
}

func TestFullTextSearchProjectFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, CreateParams{Content: "configure nginx", Owner: "o", Project: "web"})
	s.Create(ctx, CreateParams{Content: "configure postgres", Owner: "o", Project: "db"})

	results, err := s.FullTextSearch(ctx, SearchParams{Query: "configure", Project: "db"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Project != "db" {
		t.Errorf("expected only the db record, got %+v", ids(results))
	}
}

func TestFullTextSearchMatchesTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, CreateParams{Content: "renew certificates", Owner: "o", Tags: []string{"security", "tls"}})
	s.Create(ctx, CreateParams{Content: "update readme", Owner: "o"})

	results, err := s.FullTextSearch(ctx, SearchParams{Query: "tls"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "renew certificates" {
		t.Errorf("expected the tagged record, got %+v", ids(results))
	}
}

func TestFullTextIndexStaysInSync(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Create(ctx, CreateParams{Content: "original phrase", Owner: "o"})

	mem.Content = "replacement wording"
	if err := s.Update(ctx, mem); err != nil {
		t.Fatalf("update: %v", err)
	}

	stale, _ := s.FullTextSearch(ctx, SearchParams{Query: "original"})
	if len(stale) != 0 {
		t.Error("index still matches pre-update content")
	}
	fresh, _ := s.FullTextSearch(ctx, SearchParams{Query: "replacement"})
	if len(fresh) != 1 {
		t.Error("index missing post-update content")
	}

	s.Delete(ctx, mem.ID)
	gone, _ := s.FullTextSearch(ctx, SearchParams{Query: "replacement"})
	if len(gone) != 0 {
		t.Error("index still matches deleted record")
	}
}

func TestFullTextSearchQuotesUserInput(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Create(ctx, CreateParams{Content: "plain note", Owner: "o"})

	// FTS operators in user input must not cause a query error.
	if _, err := s.FullTextSearch(ctx, SearchParams{Query: `NEAR( "un*matched`}); err != nil {
		t.Errorf("expected sanitized query, got error: %v", err)
	}
}
