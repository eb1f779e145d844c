package document_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/document"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
)

const kindNote storage.Kind = "notes"

type note struct {
	ID     string         `json:"-"`
	Title  string         `json:"title"`
	Tags   []string       `json:"tags"`
	Counts map[string]int `json:"counts"`
}

type noteField string

const (
	noteTitle  noteField = "title"
	noteTags   noteField = "tags"
	noteCounts noteField = "counts"
)

type noteSchema struct{}

func (noteSchema) Kind() storage.Kind { return kindNote }

func (noteSchema) Fields() []noteField { return []noteField{noteTitle, noteTags, noteCounts} }

func (noteSchema) Empty(id string) note {
	return note{ID: id, Tags: []string{}, Counts: map[string]int{}}
}

func (noteSchema) SetID(n *note, id string) { n.ID = id }

func (noteSchema) HandleSet(n *note, field noteField, value any) error {
	if field != noteTitle {
		return document.Unsupported(document.OpSet, field)
	}
	s, ok := value.(string)
	if !ok {
		return document.Invalid(field, value)
	}
	n.Title = s
	return nil
}

func (noteSchema) HandleAdd(n *note, field noteField, value any) error {
	if field != noteTags {
		return document.Unsupported(document.OpAdd, field)
	}
	s, ok := value.(string)
	if !ok {
		return document.Invalid(field, value)
	}
	n.Tags = document.AppendUnique(n.Tags, s)
	return nil
}

func (noteSchema) HandleRemove(n *note, field noteField, value any) error {
	s, ok := value.(string)
	if !ok {
		return document.Invalid(field, value)
	}
	switch field {
	case noteTags:
		n.Tags = document.RemoveValue(n.Tags, s)
	case noteCounts:
		delete(n.Counts, s)
	default:
		return document.Unsupported(document.OpRemove, field)
	}
	return nil
}

func (noteSchema) HandleUpdate(n *note, field noteField, key string, value any) error {
	if field != noteCounts {
		return document.Unsupported(document.OpUpdate, field)
	}
	v, ok := value.(int)
	if !ok {
		return document.Invalid(field, value)
	}
	n.Counts[key] = v
	return nil
}

func newNotes(store storage.Store, id string) *document.Manager[note, noteField] {
	return document.NewManager[note, noteField](store, noteSchema{}, id, nil)
}

// flaky fails writes while down is set.
type flaky struct {
	storage.Store
	down bool
}

var errDown = errors.New("backend unavailable")

func (f *flaky) Set(ctx context.Context, kind storage.Kind, id string, doc *structpb.Struct) error {
	if f.down {
		return errDown
	}
	return f.Store.Set(ctx, kind, id, doc)
}

func (f *flaky) Create(ctx context.Context, kind storage.Kind, doc *structpb.Struct) (string, error) {
	if f.down {
		return "", errDown
	}
	return f.Store.Create(ctx, kind, doc)
}

func TestFetchDefaults(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	t.Run("new document", func(t *testing.T) {
		n, err := newNotes(store, "").Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, noteSchema{}.Empty(""), n)
	})

	t.Run("missing document", func(t *testing.T) {
		n, err := newNotes(store, "nope").Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "nope", n.ID)
		assert.Empty(t, n.Tags)
	})

	t.Run("stored fields override defaults", func(t *testing.T) {
		body, err := structpb.NewStruct(map[string]any{"title": "groceries"})
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, kindNote, "n1", body))

		n, err := newNotes(store, "n1").Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "n1", n.ID)
		assert.Equal(t, "groceries", n.Title)
		assert.NotNil(t, n.Counts)
	})
}

func TestEnqueueDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	m := newNotes(memory.New(), "")

	before, err := m.Fetch(ctx)
	require.NoError(t, err)

	m.Enqueue(document.Set(noteTitle, "rent"), document.Add(noteTags, "home"))
	after, err := m.Fetch(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.True(t, m.Dirty())
	assert.Len(t, m.Pending(), 2)
}

func TestApplyChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("requires fetch", func(t *testing.T) {
		m := newNotes(memory.New(), "")
		_, err := m.ApplyChanges()
		assert.ErrorIs(t, err, document.ErrNotFetched)
	})

	t.Run("applies in enqueue order", func(t *testing.T) {
		m := newNotes(memory.New(), "")
		_, err := m.Fetch(ctx)
		require.NoError(t, err)

		m.Enqueue(
			document.Set(noteTitle, "first"),
			document.Update(noteCounts, "a", 1),
			document.Set(noteTitle, "second"),
			document.Update(noteCounts, "a", 2),
			document.Remove(noteCounts, "a"),
		)
		n, err := m.ApplyChanges()
		require.NoError(t, err)
		assert.Equal(t, "second", n.Title)
		assert.NotContains(t, n.Counts, "a")
	})

	t.Run("add is idempotent", func(t *testing.T) {
		m := newNotes(memory.New(), "")
		_, err := m.Fetch(ctx)
		require.NoError(t, err)

		m.Enqueue(document.Add(noteTags, "x"), document.Add(noteTags, "y"), document.Add(noteTags, "x"))
		n, err := m.ApplyChanges()
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y"}, n.Tags)
	})

	t.Run("invalid changes are ignored", func(t *testing.T) {
		ignored := metrics.IgnoredChanges.WithLabelValues(string(kindNote), "set", string(noteCounts))
		unknown := metrics.IgnoredChanges.WithLabelValues(string(kindNote), "set", "color")
		beforeIgnored := testutil.ToFloat64(ignored)
		beforeUnknown := testutil.ToFloat64(unknown)

		m := newNotes(memory.New(), "")
		_, err := m.Fetch(ctx)
		require.NoError(t, err)

		m.Enqueue(
			document.Set(noteCounts, map[string]int{"a": 1}),
			document.Set(noteField("color"), "red"),
			document.Set(noteTitle, 42),
			document.Set(noteTitle, "kept"),
		)
		assert.Len(t, m.Pending(), 3, "unknown field is dropped at enqueue")

		n, err := m.ApplyChanges()
		require.NoError(t, err)
		assert.Equal(t, "kept", n.Title)
		assert.Empty(t, n.Counts)
		assert.Equal(t, beforeIgnored+1, testutil.ToFloat64(ignored))
		assert.Equal(t, beforeUnknown+1, testutil.ToFloat64(unknown))
	})
}

func TestFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op without changes", func(t *testing.T) {
		store := memory.New()
		m := newNotes(store, "")
		flushed, err := m.Flush(ctx)
		require.NoError(t, err)
		assert.False(t, flushed)
		assert.Zero(t, store.Len(kindNote))
	})

	t.Run("create assigns id and round trips", func(t *testing.T) {
		store := memory.New()
		m := newNotes(store, "")
		m.Enqueue(
			document.Set(noteTitle, "trip"),
			document.Add(noteTags, "travel"),
			document.Update(noteCounts, "days", 4),
		)

		flushed, err := m.Flush(ctx)
		require.NoError(t, err)
		assert.True(t, flushed)
		assert.False(t, m.Dirty())

		id := m.ID()
		require.NotEmpty(t, id)

		local, err := m.Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, local.ID)

		remote, err := newNotes(store, id).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, local, remote)
	})

	t.Run("overwrites known id", func(t *testing.T) {
		store := memory.New()
		m := newNotes(store, "n1")
		m.Enqueue(document.Set(noteTitle, "v1"))
		_, err := m.Flush(ctx)
		require.NoError(t, err)

		m.Enqueue(document.Set(noteTitle, "v2"))
		_, err = m.Flush(ctx)
		require.NoError(t, err)

		assert.Equal(t, "n1", m.ID())
		assert.Equal(t, 1, store.Len(kindNote))
		n, err := newNotes(store, "n1").Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v2", n.Title)
	})

	t.Run("failed write keeps the log for retry", func(t *testing.T) {
		store := &flaky{Store: memory.New(), down: true}
		m := newNotes(store, "n1")
		m.Enqueue(document.Add(noteTags, "a"), document.Update(noteCounts, "k", 7))

		flushed, err := m.Flush(ctx)
		assert.ErrorIs(t, err, errDown)
		assert.False(t, flushed)
		assert.Len(t, m.Pending(), 2)

		n, err := m.Fetch(ctx)
		require.NoError(t, err)
		assert.Empty(t, n.Tags, "snapshot untouched by a failed flush")

		store.down = false
		flushed, err = m.Flush(ctx)
		require.NoError(t, err)
		assert.True(t, flushed)

		n, err = newNotes(store, "n1").Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, n.Tags)
		assert.Equal(t, map[string]int{"k": 7}, n.Counts)
	})

	t.Run("broken manager refuses to flush", func(t *testing.T) {
		m := document.NewManager[note, noteField](nil, noteSchema{}, "n1", nil)
		m.Enqueue(document.Set(noteTitle, "x"))
		_, err := m.Flush(ctx)
		assert.ErrorIs(t, err, document.ErrBroken)
		assert.ErrorIs(t, m.Err(), document.ErrBroken)
	})

	t.Run("concurrent flushes serialize", func(t *testing.T) {
		store := memory.New()
		m := newNotes(store, "n1")

		var wg sync.WaitGroup
		for _, tag := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			wg.Add(1)
			go func(tag string) {
				defer wg.Done()
				m.Enqueue(document.Add(noteTags, tag))
				_, err := m.Flush(ctx)
				assert.NoError(t, err)
			}(tag)
		}
		wg.Wait()

		n, err := newNotes(store, "n1").Fetch(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"}, n.Tags)
	})

	t.Run("enqueue while a create adopts its id", func(t *testing.T) {
		store := memory.New()
		m := newNotes(store, "")
		m.Enqueue(document.Set(noteTitle, "draft"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := m.Flush(ctx)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			for range 20 {
				// unknown fields are logged with the manager's logger
				m.Enqueue(document.Set(noteField("nope"), "x"))
				m.Enqueue(document.Add(noteTags, "late"))
			}
		}()
		wg.Wait()

		require.NotEmpty(t, m.ID())
		_, err := m.Flush(ctx)
		require.NoError(t, err)

		n, err := newNotes(store, m.ID()).Fetch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "draft", n.Title)
		assert.Equal(t, []string{"late"}, n.Tags)
	})
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	body, err := structpb.NewStruct(map[string]any{"title": "remote"})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, kindNote, "n1", body))

	cache := document.NewSessionCache[note]()
	cache.Store("n1", note{ID: "n1", Title: "cached", Tags: []string{}, Counts: map[string]int{}})

	m := document.NewManager[note, noteField](store, noteSchema{}, "n1", cache)
	n, err := m.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cached", n.Title, "cache wins over the store")

	m.Enqueue(document.Set(noteTitle, "flushed"))
	_, err = m.Flush(ctx)
	require.NoError(t, err)

	cached, ok := cache.Lookup("n1")
	require.True(t, ok)
	assert.Equal(t, "flushed", cached.Title)

	deleted, err := m.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, ok = cache.Lookup("n1")
	assert.False(t, ok)
}

func TestExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	missing := newNotes(store, "ghost")
	ok, err := missing.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = missing.Delete(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	unsaved := newNotes(store, "")
	ok, err = unsaved.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	m := newNotes(store, "n1")
	m.Enqueue(document.Set(noteTitle, "x"))
	_, err = m.Flush(ctx)
	require.NoError(t, err)

	ok, err = m.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := m.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, n.Title, "deleted document falls back to the default")
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	m := newNotes(store, "n1")
	_, err := newNotes(store, "").Watch(nil)
	assert.Error(t, err, "unsaved documents can't be watched")

	var seen []string
	cancel, err := m.Watch(func(n note) { seen = append(seen, n.Title) })
	require.NoError(t, err)

	other := newNotes(store, "n1")
	other.Enqueue(document.Set(noteTitle, "remote"))
	_, err = other.Flush(ctx)
	require.NoError(t, err)

	n, err := m.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "remote", n.Title)

	// local changes replay on top of the remote snapshot
	m.Enqueue(document.Add(noteTags, "local"))
	_, err = m.Flush(ctx)
	require.NoError(t, err)

	cancel()
	third := newNotes(store, "n1")
	third.Enqueue(document.Set(noteTitle, "unseen"))
	_, err = third.Flush(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"remote", "remote"}, seen)

	n, err = newNotes(store, "n1").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unseen", n.Title)
	assert.Equal(t, []string{"local"}, n.Tags)
}
