// Package storage provides abstractions for the document store that holds
// travelers and expenses.
package storage

import (
	"context"
	"time"
)

// Collection names.
const (
	CollectionTravelers = "travelers"
	CollectionExpenses  = "expenses"
)

// Fields is a schemaless document body.
type Fields map[string]any

// Document is a stored document together with its store-assigned ID.
type Document struct {
	ID     string
	Fields Fields
}

// Ref points at one document.
type Ref struct {
	Collection string
	ID         string
}

// Snapshot is the full current listing of one collection.
type Snapshot struct {
	Collection string
	Documents  []Document
	ReadAt     time.Time
}

// Listener receives every snapshot of a subscribed collection. A non-nil error
// means the snapshot could not be read; the Snapshot value is then empty and
// must be ignored.
type Listener func(Snapshot, error)

// Unsubscribe stops delivery to a listener. It is safe to call more than once.
type Unsubscribe func()

// DocumentStore defines the interface for document storage operations.
// This abstraction allows swapping storage backends without changing the
// synchronization or service layers.
type DocumentStore interface {
	// Create inserts a new document and returns the ID assigned by the store.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Delete removes a document. Deleting a document that does not exist is
	// not an error.
	Delete(ctx context.Context, collection, id string) error

	// Query returns all documents whose top-level field equals value.
	Query(ctx context.Context, collection, field string, value any) ([]Document, error)

	// List returns every document of a collection.
	List(ctx context.Context, collection string) ([]Document, error)

	// Subscribe registers a listener for full snapshots of a collection.
	// The first snapshot is delivered before Subscribe returns; later ones
	// follow every committed change. Cancelling ctx unsubscribes.
	// Returns an error if the subscription could not be established, in which
	// case nothing stays registered.
	Subscribe(ctx context.Context, collection string, fn Listener) (Unsubscribe, error)

	// BatchDelete removes all referenced documents atomically: either every
	// deletion is applied or none is.
	BatchDelete(ctx context.Context, refs []Ref) error

	// Close releases any resources held by the store.
	Close() error
}
