// Package sqlite provides a SQLite-backed implementation of the storage.DocumentStore interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/travelspend/internal/storage"
)

// Ensure Store implements storage.DocumentStore
var _ storage.DocumentStore = (*Store)(nil)

// fieldPattern restricts queryable field names to plain top-level keys so they
// can be embedded in a JSON path.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements storage.DocumentStore using SQLite. Each document is a row
// holding its JSON body; subscriptions are served in-process.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	nextSubID uint64
	listeners map[string]map[uint64]*subscription
	closed    bool

	// dispatchMu orders snapshot reads and deliveries so every listener
	// observes snapshots in commit order.
	dispatchMu sync.Mutex
}

// New creates a new Store with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		db:        db,
		listeners: make(map[string]map[uint64]*subscription),
	}, nil
}

// Close drops all subscriptions and closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	for _, subs := range s.listeners {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	s.listeners = make(map[string]map[uint64]*subscription)
	s.mu.Unlock()

	return s.db.Close()
}

// Create inserts a new document with a generated UUID.
func (s *Store) Create(ctx context.Context, collection string, fields storage.Fields) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	if fields == nil {
		fields = storage.Fields{}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, data, created_at) VALUES (?, ?, ?, ?)",
		collection, id, string(data), time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	s.dispatch(ctx, collection)
	return id, nil
}

// Delete removes a document by ID. A missing document is treated as already deleted.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected > 0 {
		s.dispatch(ctx, collection)
	}
	return nil
}

// Query returns the documents of a collection whose top-level field equals value.
func (s *Store) Query(ctx context.Context, collection, field string, value any) ([]storage.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if !fieldPattern.MatchString(field) {
		return nil, fmt.Errorf("invalid field name: %q", field)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE collection = ? AND json_extract(data, ?) = ? ORDER BY rowid",
		collection, "$."+field, value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// List returns all documents of a collection in creation order.
func (s *Store) List(ctx context.Context, collection string) ([]storage.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// BatchDelete removes all referenced documents in one transaction.
func (s *Store) BatchDelete(ctx context.Context, refs []storage.Ref) error {
	if len(refs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	changed := make(map[string]bool)
	for _, ref := range refs {
		if err := validateCollection(ref.Collection); err != nil {
			return fmt.Errorf("batch delete %s: %w", ref.ID, err)
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?",
			ref.Collection, ref.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete document %s/%s: %w", ref.Collection, ref.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			changed[ref.Collection] = true
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	collections := make([]string, 0, len(changed))
	for c := range changed {
		collections = append(collections, c)
	}
	sort.Strings(collections)
	for _, c := range collections {
		s.dispatch(ctx, c)
	}
	return nil
}

func scanDocuments(rows *sql.Rows) ([]storage.Document, error) {
	var docs []storage.Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields := storage.Fields{}
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		docs = append(docs, storage.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func validateCollection(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("collection name is required")
	}
	return nil
}
