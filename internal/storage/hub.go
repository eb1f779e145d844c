package storage

import (
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type docKey struct {
	kind Kind
	id   string
}

// Hub fans document writes out to subscribers. Store implementations embed
// it and call Publish after every successful write. The zero value is ready
// to use.
type Hub struct {
	mu        sync.Mutex
	next      int
	listeners map[docKey]map[int]Listener
}

// Subscribe registers fn for (kind, id).
func (h *Hub) Subscribe(kind Kind, id string, fn Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners == nil {
		h.listeners = make(map[docKey]map[int]Listener)
	}
	k := docKey{kind: kind, id: id}
	if h.listeners[k] == nil {
		h.listeners[k] = make(map[int]Listener)
	}
	h.next++
	token := h.next
	h.listeners[k][token] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[k], token)
		if len(h.listeners[k]) == 0 {
			delete(h.listeners, k)
		}
	}
}

// Publish delivers doc to every subscriber of (kind, id). Each listener gets
// its own copy. A nil doc signals deletion.
func (h *Hub) Publish(kind Kind, id string, doc *structpb.Struct) {
	h.mu.Lock()
	var fns []Listener
	for _, fn := range h.listeners[docKey{kind: kind, id: id}] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		if doc == nil {
			fn(nil)
			continue
		}
		fn(proto.Clone(doc).(*structpb.Struct))
	}
}
