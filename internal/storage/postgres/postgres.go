// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface. Bodies are stored as JSONB so they stay queryable
// from psql.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/ids"
	"github.com/mmynk/splitledger/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on PostgreSQL.
// Subscriptions are delivered in-process only.
type Store struct {
	storage.Hub
	db *sql.DB
}

// New connects to databaseURL and runs the embedded migrations.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Database migrations completed")

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, kind storage.Kind, id string) (*structpb.Struct, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE kind = $1 AND id = $2",
		string(kind), id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc := &structpb.Struct{}
	if err := protojson.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", kind, id, err)
	}
	return doc, nil
}

func (s *Store) Set(ctx context.Context, kind storage.Kind, id string, doc *structpb.Struct) error {
	body, err := protojson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (kind, id, body) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		string(kind), id, body,
	)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	s.Publish(kind, id, doc)
	return nil
}

func (s *Store) Create(ctx context.Context, kind storage.Kind, doc *structpb.Struct) (string, error) {
	id := ids.New()
	if err := s.Set(ctx, kind, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Delete(ctx context.Context, kind storage.Kind, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE kind = $1 AND id = $2",
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
