package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/travelspend/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// snapshotRecorder collects snapshots delivered to a listener.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []storage.Snapshot
	errs  []error
}

func (r *snapshotRecorder) listen(snap storage.Snapshot, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs = append(r.errs, err)
		return
	}
	r.snaps = append(r.snaps, snap)
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *snapshotRecorder) last() storage.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func TestStoreDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("Create assigns unique IDs", func(t *testing.T) {
		id1, err := store.Create(ctx, storage.CollectionTravelers, storage.Fields{"name": "Ana"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		id2, err := store.Create(ctx, storage.CollectionTravelers, storage.Fields{"name": "Ana"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if id1 == "" || id2 == "" || id1 == id2 {
			t.Errorf("expected two distinct non-empty IDs, got %q and %q", id1, id2)
		}
	})

	t.Run("List returns documents in creation order", func(t *testing.T) {
		docs, err := store.List(ctx, storage.CollectionTravelers)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(docs))
		}
		if docs[0].Fields["name"] != "Ana" {
			t.Errorf("unexpected fields: %v", docs[0].Fields)
		}
	})

	t.Run("Query filters by field", func(t *testing.T) {
		for _, e := range []storage.Fields{
			{"type": "taxi", "amount": 12.0, "travelerId": "t1"},
			{"type": "hotel", "amount": 80.0, "travelerId": "t1"},
			{"type": "cena", "amount": 25.5, "travelerId": "t2"},
		} {
			if _, err := store.Create(ctx, storage.CollectionExpenses, e); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}

		docs, err := store.Query(ctx, storage.CollectionExpenses, "travelerId", "t1")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 expenses for t1, got %d", len(docs))
		}
		if docs[0].Fields["amount"] != 12.0 {
			t.Errorf("amount = %v, want 12", docs[0].Fields["amount"])
		}

		docs, err = store.Query(ctx, storage.CollectionExpenses, "travelerId", "nobody")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(docs) != 0 {
			t.Errorf("expected no documents, got %d", len(docs))
		}
	})

	t.Run("Query rejects unsafe field names", func(t *testing.T) {
		if _, err := store.Query(ctx, storage.CollectionExpenses, "a') OR 1=1 --", "x"); err == nil {
			t.Error("expected error for invalid field name")
		}
	})

	t.Run("Delete of missing document is not an error", func(t *testing.T) {
		if err := store.Delete(ctx, storage.CollectionTravelers, "nonexistent-id"); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("Create requires a collection", func(t *testing.T) {
		if _, err := store.Create(ctx, " ", storage.Fields{}); err == nil {
			t.Error("expected error for empty collection")
		}
	})
}

func TestStoreBatchDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, storage.CollectionExpenses, storage.Fields{"travelerId": "t1"})
	b, _ := store.Create(ctx, storage.CollectionExpenses, storage.Fields{"travelerId": "t1"})
	c, _ := store.Create(ctx, storage.CollectionExpenses, storage.Fields{"travelerId": "t2"})

	t.Run("failed batch applies nothing", func(t *testing.T) {
		err := store.BatchDelete(ctx, []storage.Ref{
			{Collection: storage.CollectionExpenses, ID: a},
			{Collection: "", ID: b},
		})
		if err == nil {
			t.Fatal("expected batch error")
		}

		docs, err := store.List(ctx, storage.CollectionExpenses)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(docs) != 3 {
			t.Errorf("expected rollback to keep 3 documents, got %d", len(docs))
		}
	})

	t.Run("successful batch removes all refs", func(t *testing.T) {
		err := store.BatchDelete(ctx, []storage.Ref{
			{Collection: storage.CollectionExpenses, ID: a},
			{Collection: storage.CollectionExpenses, ID: b},
			{Collection: storage.CollectionExpenses, ID: "already-gone"},
		})
		if err != nil {
			t.Fatalf("BatchDelete failed: %v", err)
		}

		docs, err := store.List(ctx, storage.CollectionExpenses)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(docs) != 1 || docs[0].ID != c {
			t.Errorf("expected only %s to remain, got %+v", c, docs)
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		if err := store.BatchDelete(ctx, nil); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

func TestStoreSubscribe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, storage.CollectionTravelers, storage.Fields{"name": "Ana"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rec := &snapshotRecorder{}
	unsubscribe, err := store.Subscribe(ctx, storage.CollectionTravelers, rec.listen)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsubscribe()

	t.Run("initial snapshot is delivered on subscribe", func(t *testing.T) {
		if rec.count() != 1 {
			t.Fatalf("expected 1 snapshot, got %d", rec.count())
		}
		if got := len(rec.last().Documents); got != 1 {
			t.Errorf("expected 1 document, got %d", got)
		}
	})

	t.Run("every change delivers a full snapshot", func(t *testing.T) {
		id, err := store.Create(ctx, storage.CollectionTravelers, storage.Fields{"name": "Luis"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if got := len(rec.last().Documents); got != 2 {
			t.Fatalf("expected 2 documents after create, got %d", got)
		}

		if err := store.Delete(ctx, storage.CollectionTravelers, id); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if got := len(rec.last().Documents); got != 1 {
			t.Errorf("expected 1 document after delete, got %d", got)
		}
		if rec.count() != 3 {
			t.Errorf("expected 3 snapshots, got %d", rec.count())
		}
	})

	t.Run("changes to other collections are not delivered", func(t *testing.T) {
		before := rec.count()
		if _, err := store.Create(ctx, storage.CollectionExpenses, storage.Fields{"travelerId": "x"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if rec.count() != before {
			t.Errorf("expected no new travelers snapshot, got %d", rec.count()-before)
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		unsubscribe()
		unsubscribe()
		before := rec.count()
		if _, err := store.Create(ctx, storage.CollectionTravelers, storage.Fields{"name": "Eva"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if rec.count() != before {
			t.Errorf("expected no delivery after unsubscribe")
		}
	})
}

func TestStoreSubscribeContextCancel(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	rec := &snapshotRecorder{}
	if _, err := store.Subscribe(ctx, storage.CollectionExpenses, rec.listen); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	// The context hook runs on its own goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for len(store.subscribers(storage.CollectionExpenses)) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription still registered after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := store.Create(context.Background(), storage.CollectionExpenses, storage.Fields{"travelerId": "t1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected only the initial snapshot, got %d", rec.count())
	}
}

func TestStoreSubscribeAfterClose(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.Close()

	if _, err := store.Subscribe(context.Background(), storage.CollectionTravelers, func(storage.Snapshot, error) {}); err == nil {
		t.Error("expected error subscribing to a closed store")
	}
}
