package pattern

import (
	"context"
	"testing"

	"github.com/kadirpekel/backplane/internal/sqlutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{Driver: sqlutil.DialectSQLite, ConnectionString: ":memory:"}, nil, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHarvestAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.Harvest(ctx, Pattern{Type: TypeTechnical, Domain: "testing", Title: "retry with backoff", Description: "use exponential backoff on flaky calls", Action: "wrap the call in a backoff loop", Outcome: "flaky calls stopped failing the build", Confidence: 1.5})
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if p.Confidence != 1 {
		t.Errorf("confidence should clamp to 1, got %v", p.Confidence)
	}

	got, err := store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != p.Title {
		t.Errorf("title = %q, want %q", got.Title, p.Title)
	}
}

func TestHarvestRejectsUnknownType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Harvest(ctx, Pattern{Type: "bogus", Domain: "testing", Title: "x"}); err == nil {
		t.Fatal("expected error for unrecognized pattern type")
	}
}

func TestObserveRecordsObservationAndIncrementsUsage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, _ := store.Harvest(ctx, Pattern{Type: TypeSuccess, Domain: "testing", Title: "x", Action: "do it", Confidence: 0.9})
	rating := 4
	if _, err := store.Observe(ctx, Observation{PatternID: p.ID, SessionID: "s1", SuccessRating: &rating, Feedback: "worked well"}); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	stats, err := store.GetWithStats(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetWithStats: %v", err)
	}
	if stats.ObservationCount != 1 {
		t.Errorf("observation_count = %d, want 1", stats.ObservationCount)
	}
	if stats.AverageRating != 4 {
		t.Errorf("average_rating = %v, want 4", stats.AverageRating)
	}
}

func TestObserveRejectsOutOfRangeRating(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, _ := store.Harvest(ctx, Pattern{Type: TypeSuccess, Domain: "testing", Title: "x", Action: "do it", Confidence: 0.9})
	rating := 6
	if _, err := store.Observe(ctx, Observation{PatternID: p.ID, SuccessRating: &rating}); err == nil {
		t.Fatal("expected error for out-of-range success_rating")
	}
}

func TestListFiltersByDomainAndType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Harvest(ctx, Pattern{Type: TypeProcess, Domain: "infra", Title: "a", Action: "do a", Confidence: 0.7})
	store.Harvest(ctx, Pattern{Type: TypeFailure, Domain: "testing", Title: "b", Action: "do b", Confidence: 0.7})

	got, err := store.List(ctx, ListFilter{Domain: "infra"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Domain != "infra" {
		t.Fatalf("unexpected list result: %+v", got)
	}

	got, err = store.List(ctx, ListFilter{Type: TypeFailure})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Title != "b" {
		t.Fatalf("unexpected type-filtered list result: %+v", got)
	}
}

func TestSearchWithoutEmbedderReturnsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.Harvest(ctx, Pattern{Type: TypeProcess, Domain: "infra", Title: "a", Action: "do a", Confidence: 0.7})

	results, err := store.Search(ctx, "anything", "", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results without embedder, got %d", len(results))
	}
}
