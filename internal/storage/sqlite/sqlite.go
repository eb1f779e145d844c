// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitledger/internal/ids"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
// Subscriptions are delivered in-process only.
type SQLiteStore struct {
	storage.Hub
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get retrieves the document at (kind, id).
func (s *SQLiteStore) Get(ctx context.Context, kind storage.Kind, id string) (*structpb.Struct, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE kind = ? AND id = ?",
		string(kind), id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc := &structpb.Struct{}
	if err := proto.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", kind, id, err)
	}
	return doc, nil
}

// Set creates or overwrites the document at (kind, id).
func (s *SQLiteStore) Set(ctx context.Context, kind storage.Kind, id string, doc *structpb.Struct) error {
	body, err := proto.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	now := time.Now().Unix()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (kind, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(kind), id, body, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	slog.Debug("Document written", "kind", kind, "id", id, "bytes", len(body))

	s.Publish(kind, id, doc)
	return nil
}

// Create persists a new document under a generated UUID.
func (s *SQLiteStore) Create(ctx context.Context, kind storage.Kind, doc *structpb.Struct) (string, error) {
	id := ids.New()
	if err := s.Set(ctx, kind, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes the document at (kind, id).
func (s *SQLiteStore) Delete(ctx context.Context, kind storage.Kind, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE kind = ? AND id = ?",
		string(kind), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	s.Publish(kind, id, nil)
	return nil
}
