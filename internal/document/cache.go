package document

import "sync"

// Cache is a read-through cache consulted before the store. A hit wins over a
// remote read; the store never overrides a cached copy.
type Cache[T any] interface {
	Lookup(id string) (T, bool)
	Store(id string, doc T)
	Evict(id string)
}

// SessionCache holds the documents of the current session (e.g. the signed-in
// user, or a transaction the caller just created).
type SessionCache[T any] struct {
	mu   sync.RWMutex
	docs map[string]T
}

func NewSessionCache[T any]() *SessionCache[T] {
	return &SessionCache[T]{docs: make(map[string]T)}
}

func (c *SessionCache[T]) Lookup(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id]
	return doc, ok
}

func (c *SessionCache[T]) Store(id string, doc T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[id] = doc
}

func (c *SessionCache[T]) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, id)
}
