// Package document implements the change-tracked unit of work shared by all
// entity kinds.
//
// A Manager lazily fetches one document, queues typed Changes against it and
// writes the result back in a single Set (or Create for a new document).
// Changes never touch state when they are queued; they are replayed in order
// against a copy of the fetched snapshot on every flush, so a failed write
// leaves the queue intact and the flush can simply be retried.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/storage"
)

// Manager is the unit of work for one document of type T with field enum F.
//
// I/O methods (Fetch, Flush, Exists, Delete) are serialized per instance.
// Enqueue may be called at any time; changes queued while a flush is writing
// stay pending for the next flush.
type Manager[T any, F ~string] struct {
	schema Schema[T, F]
	store  storage.Store
	cache  Cache[T]
	fields map[F]bool
	err    error

	// io serializes store round trips. It is never taken by subscription
	// callbacks, which only need mu.
	io sync.Mutex

	mu sync.Mutex
	// logger is replaced while holding both io and mu, so holding either
	// one is enough to read it.
	logger  *slog.Logger
	id      string
	data    T
	fetched bool
	log     ChangeLog[F]
}

// NewManager returns a manager for the document at id. An empty id means a
// new document that the store will name on the first flush. cache may be nil.
func NewManager[T any, F ~string](store storage.Store, schema Schema[T, F], id string, cache Cache[T]) *Manager[T, F] {
	m := &Manager[T, F]{
		store: store,
		cache: cache,
		id:    id,
	}
	switch {
	case schema == nil:
		m.err = fmt.Errorf("%w: nil schema", ErrBroken)
		m.logger = slog.Default()
		return m
	case store == nil:
		m.err = fmt.Errorf("%w: nil store", ErrBroken)
	}
	m.schema = schema
	m.logger = slog.Default().With("kind", schema.Kind(), "id", id)
	m.fields = make(map[F]bool)
	for _, f := range schema.Fields() {
		m.fields[f] = true
	}
	return m
}

// ID returns the document ID, or "" before the first flush of a new document.
func (m *Manager[T, F]) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Err returns the construction error, if any.
func (m *Manager[T, F]) Err() error {
	return m.err
}

// Dirty reports whether changes are pending.
func (m *Manager[T, F]) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Len() > 0
}

// Pending returns the queued changes in order.
func (m *Manager[T, F]) Pending() []Change[F] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Changes()
}

// Enqueue queues changes. Changes naming a field outside the schema are
// logged and dropped.
func (m *Manager[T, F]) Enqueue(changes ...Change[F]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range changes {
		if !m.fields[c.Field] {
			m.ignore(c, ErrUnknownField)
			continue
		}
		m.log.Append(c)
	}
}

// Fetch returns the current document, loading it on first use. A missing
// document, or a new one without an ID, yields the schema default.
// The returned value is shared; callers must not modify it.
func (m *Manager[T, F]) Fetch(ctx context.Context) (T, error) {
	if m.err != nil {
		var zero T
		return zero, m.err
	}
	m.io.Lock()
	defer m.io.Unlock()
	return m.fetchLocked(ctx)
}

func (m *Manager[T, F]) fetchLocked(ctx context.Context) (T, error) {
	m.mu.Lock()
	if m.fetched {
		data := m.data
		m.mu.Unlock()
		return data, nil
	}
	id := m.id
	m.mu.Unlock()

	data, err := m.load(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.fetched = true
	return data, nil
}

func (m *Manager[T, F]) load(ctx context.Context, id string) (T, error) {
	if id == "" {
		return m.schema.Empty(""), nil
	}
	if m.cache != nil {
		if doc, ok := m.cache.Lookup(id); ok {
			m.logger.Debug("Document served from session cache")
			return doc, nil
		}
	}

	raw, err := m.store.Get(ctx, m.schema.Kind(), id)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.ObserveOp(string(m.schema.Kind()), "get", nil)
		return m.schema.Empty(id), nil
	}
	metrics.ObserveOp(string(m.schema.Kind()), "get", err)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to fetch %s/%s: %w", m.schema.Kind(), id, err)
	}
	return m.decode(id, raw)
}

func (m *Manager[T, F]) decode(id string, raw *structpb.Struct) (T, error) {
	doc := m.schema.Empty(id)
	if err := Decode(raw, &doc); err != nil {
		var zero T
		return zero, err
	}
	m.schema.SetID(&doc, id)
	return doc, nil
}

// ApplyChanges returns the document as it will look after the pending
// changes, without persisting anything. Fetch must have been called.
func (m *Manager[T, F]) ApplyChanges() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.fetched {
		var zero T
		return zero, ErrNotFetched
	}
	next, _, err := m.applyLocked()
	return next, err
}

// applyLocked replays the log against a copy of the snapshot and returns it
// with the number of changes replayed. Rejected changes are logged.
func (m *Manager[T, F]) applyLocked() (T, int, error) {
	next, err := m.cloneLocked()
	if err != nil {
		var zero T
		return zero, 0, err
	}
	changes := m.log.Changes()
	for _, c := range changes {
		if err := Apply(m.schema, &next, c); err != nil {
			m.ignore(c, err)
		}
	}
	return next, len(changes), nil
}

func (m *Manager[T, F]) cloneLocked() (T, error) {
	raw, err := Encode(m.data)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.decode(m.id, raw)
}

func (m *Manager[T, F]) ignore(c Change[F], err error) {
	m.logger.Warn("Ignoring change", "op", c.Op, "field", c.Field, "key", c.Key, "error", err)
	metrics.IgnoredChanges.WithLabelValues(string(m.schema.Kind()), c.Op.String(), string(c.Field)).Inc()
}

// Flush applies the pending changes and writes the document: an overwrite
// when the ID is known, a create otherwise (the manager then adopts the new
// ID). It reports false without touching the store when nothing is pending.
//
// On a store error the pending changes are kept and the snapshot is left as
// it was, so Flush can be retried.
func (m *Manager[T, F]) Flush(ctx context.Context) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.io.Lock()
	defer m.io.Unlock()

	if !m.Dirty() {
		return false, nil
	}
	if _, err := m.fetchLocked(ctx); err != nil {
		return false, err
	}

	start := time.Now()
	kind := string(m.schema.Kind())
	defer func() {
		metrics.FlushDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	m.mu.Lock()
	next, n, err := m.applyLocked()
	id := m.id
	m.mu.Unlock()
	if err != nil {
		return false, err
	}

	raw, err := Encode(next)
	if err != nil {
		return false, err
	}

	if id != "" {
		err = m.store.Set(ctx, m.schema.Kind(), id, raw)
		metrics.ObserveOp(kind, "set", err)
		if err != nil {
			return false, fmt.Errorf("failed to write %s/%s: %w", kind, id, err)
		}
	} else {
		id, err = m.store.Create(ctx, m.schema.Kind(), raw)
		metrics.ObserveOp(kind, "create", err)
		if err != nil {
			return false, fmt.Errorf("failed to create %s: %w", kind, err)
		}
		m.schema.SetID(&next, id)
	}

	m.mu.Lock()
	if m.id != id {
		m.logger = m.logger.With("id", id)
	}
	m.id = id
	m.data = next
	m.fetched = true
	m.log.DropFirst(n)
	m.mu.Unlock()

	if m.cache != nil {
		m.cache.Store(id, next)
	}
	m.logger.Debug("Document flushed", "changes", n)
	return true, nil
}

// Exists reports whether a document is stored under the manager's ID.
func (m *Manager[T, F]) Exists(ctx context.Context) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.io.Lock()
	defer m.io.Unlock()

	id := m.ID()
	if id == "" {
		return false, nil
	}
	_, err := m.store.Get(ctx, m.schema.Kind(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s/%s: %w", m.schema.Kind(), id, err)
	}
	return true, nil
}

// Delete removes the stored document. It reports false if there was none.
// The manager falls back to the schema default afterwards.
func (m *Manager[T, F]) Delete(ctx context.Context) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.io.Lock()
	defer m.io.Unlock()

	id := m.ID()
	if id == "" {
		return false, nil
	}
	kind := string(m.schema.Kind())
	err := m.store.Delete(ctx, m.schema.Kind(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	metrics.ObserveOp(kind, "delete", err)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s/%s: %w", kind, id, err)
	}

	m.mu.Lock()
	m.data = m.schema.Empty(id)
	m.fetched = true
	m.mu.Unlock()

	if m.cache != nil {
		m.cache.Evict(id)
	}
	m.logger.Info("Document deleted")
	return true, nil
}

// Watch delivers remote updates of the document to fn and adopts them as the
// manager's snapshot. Pending changes are kept and will be replayed on top
// of whatever snapshot is current at the next flush.
func (m *Manager[T, F]) Watch(fn func(T)) (cancel func(), err error) {
	if m.err != nil {
		return nil, m.err
	}
	id := m.ID()
	if id == "" {
		return nil, fmt.Errorf("cannot watch an unsaved %s", m.schema.Kind())
	}

	return m.store.Subscribe(m.schema.Kind(), id, func(raw *structpb.Struct) {
		var doc T
		if raw == nil {
			doc = m.schema.Empty(id)
		} else {
			decoded, err := m.decode(id, raw)
			if err != nil {
				m.mu.Lock()
				logger := m.logger
				m.mu.Unlock()
				logger.Warn("Dropping undecodable remote update", "error", err)
				return
			}
			doc = decoded
		}

		m.mu.Lock()
		m.data = doc
		m.fetched = true
		m.mu.Unlock()

		if fn != nil {
			fn(doc)
		}
	}), nil
}
