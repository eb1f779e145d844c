// Package storage provides abstractions for persistent document storage.
package storage

import (
	"context"
	"errors"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotFound is returned when no document exists at (kind, id).
var ErrNotFound = errors.New("document not found")

// Kind names a document collection.
type Kind string

const (
	KindUser        Kind = "users"
	KindGroup       Kind = "groups"
	KindTransaction Kind = "transactions"
)

// Listener receives the new body of a watched document, or nil once the
// document has been deleted.
type Listener func(doc *structpb.Struct)

// Store defines the interface for document storage operations.
// This abstraction allows swapping storage backends (memory, SQLite, PostgreSQL)
// without changing the entity layer.
type Store interface {
	// Get retrieves the document at (kind, id).
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, kind Kind, id string) (*structpb.Struct, error)

	// Set creates or overwrites the document at (kind, id).
	Set(ctx context.Context, kind Kind, id string, doc *structpb.Struct) error

	// Create persists a new document and returns the ID the store assigned.
	Create(ctx context.Context, kind Kind, doc *structpb.Struct) (string, error)

	// Delete removes the document at (kind, id).
	// Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, kind Kind, id string) error

	// Subscribe calls fn after every write to (kind, id) until the returned
	// cancel func is called. Delivery happens on the writer's goroutine.
	Subscribe(kind Kind, id string, fn Listener) (cancel func())

	// Close releases any resources held by the store.
	Close() error
}
