package handoff

import (
	"context"
	"testing"

	"github.com/kadirpekel/backplane/internal/apperr"
	"github.com/kadirpekel/backplane/internal/sqlutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{Driver: sqlutil.DialectSQLite, ConnectionString: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProposeAcceptComplete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	h, err := store.Propose(ctx, "sess-1", "agent-a", "agent-b", "please take over", nil)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if h.Status != StatusPending {
		t.Fatalf("status = %s, want pending", h.Status)
	}

	accepted, err := store.Accept(ctx, h.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != StatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("unexpected accepted handoff: %+v", accepted)
	}

	completed, err := store.Complete(ctx, h.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("unexpected completed handoff: %+v", completed)
	}
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	h, _ := store.Propose(ctx, "s", "a", "b", "x", nil)
	if _, err := store.Complete(ctx, h.ID); err == nil {
		t.Fatal("expected error completing a pending handoff")
	} else if apperr.HTTPStatus(err) != 409 {
		t.Errorf("expected conflict status, got via HTTPStatus: %d", apperr.HTTPStatus(err))
	}

	store.Reject(ctx, h.ID)
	if _, err := store.Accept(ctx, h.ID); err == nil {
		t.Fatal("expected error accepting a rejected handoff")
	}
}

func TestListPendingOrdersAscending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Propose(ctx, "s", "a", "b", "first", nil)
	store.Propose(ctx, "s", "a", "b", "second", nil)

	pending, err := store.ListPending(ctx, "b")
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 || pending[0].Summary != "first" {
		t.Fatalf("unexpected order: %+v", pending)
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected not found error")
	} else if apperr.HTTPStatus(err) != 404 {
		t.Errorf("expected 404, got %d", apperr.HTTPStatus(err))
	}
}
