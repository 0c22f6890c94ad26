package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmynk/travelspend/internal/storage"
)

type subscription struct {
	fn     storage.Listener
	active atomic.Bool
}

// Subscribe registers fn for full snapshots of collection.
//
// Listeners run synchronously on the goroutine that committed the change and
// must not call mutating Store methods from inside the callback. Snapshot
// documents are shared between listeners and must be treated as read-only.
func (s *Store) Subscribe(ctx context.Context, collection string, fn storage.Listener) (storage.Unsubscribe, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("listener is required")
	}

	sub := &subscription{fn: fn}
	sub.active.Store(true)

	s.dispatchMu.Lock()
	snap, err := s.snapshot(ctx, collection)
	if err != nil {
		s.dispatchMu.Unlock()
		return nil, fmt.Errorf("failed to read initial snapshot: %w", err)
	}
	id, err := s.register(collection, sub)
	if err != nil {
		s.dispatchMu.Unlock()
		return nil, err
	}
	fn(snap, nil)
	s.dispatchMu.Unlock()

	slog.Debug("Subscription opened", "collection", collection, "subscription_id", id)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			sub.active.Store(false)
			s.unregister(collection, id)
			slog.Debug("Subscription closed", "collection", collection, "subscription_id", id)
		})
	}
	stop := context.AfterFunc(ctx, unsubscribe)

	return func() {
		stop()
		unsubscribe()
	}, nil
}

func (s *Store) register(collection string, sub *subscription) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	s.nextSubID++
	id := s.nextSubID
	if s.listeners[collection] == nil {
		s.listeners[collection] = make(map[uint64]*subscription)
	}
	s.listeners[collection][id] = sub
	return id, nil
}

func (s *Store) unregister(collection string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners[collection], id)
	if len(s.listeners[collection]) == 0 {
		delete(s.listeners, collection)
	}
}

func (s *Store) subscribers(collection string) []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]*subscription, 0, len(s.listeners[collection]))
	for _, sub := range s.listeners[collection] {
		subs = append(subs, sub)
	}
	return subs
}

// dispatch reads a fresh snapshot of collection and hands it to every active
// listener. It runs after a change has been committed.
func (s *Store) dispatch(ctx context.Context, collection string) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	subs := s.subscribers(collection)
	if len(subs) == 0 {
		return
	}

	snap, err := s.snapshot(context.WithoutCancel(ctx), collection)
	if err != nil {
		slog.Error("Snapshot read failed", "collection", collection, "error", err)
	}
	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		if err != nil {
			sub.fn(storage.Snapshot{}, err)
			continue
		}
		sub.fn(snap, nil)
	}
}

func (s *Store) snapshot(ctx context.Context, collection string) (storage.Snapshot, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return storage.Snapshot{}, err
	}
	return storage.Snapshot{
		Collection: collection,
		Documents:  docs,
		ReadAt:     time.Now(),
	}, nil
}
