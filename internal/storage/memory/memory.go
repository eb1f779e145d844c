// Package memory provides an in-memory storage.Store for tests and local runs.
package memory

import (
	"context"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/ids"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

type key struct {
	kind storage.Kind
	id   string
}

// Store keeps documents in a map. Documents are cloned on the way in and on
// the way out so callers never share state with the store.
type Store struct {
	storage.Hub

	mu   sync.RWMutex
	docs map[key]*structpb.Struct
}

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[key]*structpb.Struct)}
}

func (s *Store) Get(_ context.Context, kind storage.Kind, id string) (*structpb.Struct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key{kind, id}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(doc), nil
}

func (s *Store) Set(_ context.Context, kind storage.Kind, id string, doc *structpb.Struct) error {
	s.mu.Lock()
	s.docs[key{kind, id}] = clone(doc)
	s.mu.Unlock()

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

func (s *Store) Delete(_ context.Context, kind storage.Kind, id string) error {
	s.mu.Lock()
	k := key{kind, id}
	if _, ok := s.docs[k]; !ok {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(s.docs, k)
	s.mu.Unlock()

	s.Publish(kind, id, nil)
	return nil
}

// Len returns the number of documents of kind.
func (s *Store) Len(kind storage.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.docs {
		if k.kind == kind {
			n++
		}
	}
	return n
}

func (s *Store) Close() error { return nil }

func clone(doc *structpb.Struct) *structpb.Struct {
	if doc == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}
	return proto.Clone(doc).(*structpb.Struct)
}
