package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "splitledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("Create assigns ID", func(t *testing.T) {
		doc, _ := structpb.NewStruct(map[string]any{"title": "Groceries", "amount": 42.5})

		id, err := store.Create(ctx, storage.KindTransaction, doc)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if id == "" {
			t.Fatal("Expected document ID to be generated")
		}

		got, err := store.Get(ctx, storage.KindTransaction, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Fields["title"].GetStringValue() != "Groceries" {
			t.Errorf("title mismatch: got %q", got.Fields["title"].GetStringValue())
		}
		if got.Fields["amount"].GetNumberValue() != 42.5 {
			t.Errorf("amount mismatch: got %v", got.Fields["amount"].GetNumberValue())
		}
	})

	t.Run("Set overwrites existing document", func(t *testing.T) {
		first, _ := structpb.NewStruct(map[string]any{"name": "Trip", "users": []any{"a"}})
		second, _ := structpb.NewStruct(map[string]any{"name": "Trip 2025"})

		if err := store.Set(ctx, storage.KindGroup, "g1", first); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Set(ctx, storage.KindGroup, "g1", second); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, err := store.Get(ctx, storage.KindGroup, "g1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Fields["name"].GetStringValue() != "Trip 2025" {
			t.Errorf("name mismatch: got %q", got.Fields["name"].GetStringValue())
		}
		if _, ok := got.Fields["users"]; ok {
			t.Error("Expected overwrite to drop old fields")
		}
	})

	t.Run("Get returns ErrNotFound for nonexistent document", func(t *testing.T) {
		_, err := store.Get(ctx, storage.KindUser, "nonexistent-id")
		if err != storage.ErrNotFound {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete removes document", func(t *testing.T) {
		doc, _ := structpb.NewStruct(map[string]any{"friends": []any{}})
		if err := store.Set(ctx, storage.KindUser, "u1", doc); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Delete(ctx, storage.KindUser, "u1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := store.Delete(ctx, storage.KindUser, "u1"); err != storage.ErrNotFound {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("Subscribers see writes", func(t *testing.T) {
		var names []string
		cancel := store.Subscribe(storage.KindGroup, "g2", func(doc *structpb.Struct) {
			if doc == nil {
				names = append(names, "<deleted>")
				return
			}
			names = append(names, doc.Fields["name"].GetStringValue())
		})
		defer cancel()

		doc, _ := structpb.NewStruct(map[string]any{"name": "Flat"})
		if err := store.Set(ctx, storage.KindGroup, "g2", doc); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Delete(ctx, storage.KindGroup, "g2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		if len(names) != 2 || names[0] != "Flat" || names[1] != "<deleted>" {
			t.Errorf("Unexpected notifications: %v", names)
		}
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "ledger.db")
	ctx := context.Background()

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	doc, _ := structpb.NewStruct(map[string]any{"title": "Rent"})
	id, err := store.Create(ctx, storage.KindTransaction, doc)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	store.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, storage.KindTransaction, id)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Fields["title"].GetStringValue() != "Rent" {
		t.Errorf("title mismatch after reopen: got %q", got.Fields["title"].GetStringValue())
	}
}
