package suggest

import "sync"

// Hub keeps one engine per user, created on first use.
type Hub struct {
	mu      sync.Mutex
	engines map[int]*Engine
	factory func(uid int) *Engine
	closed  bool
}

func NewHub(factory func(uid int) *Engine) *Hub {
	return &Hub{
		engines: make(map[int]*Engine),
		factory: factory,
	}
}

func (h *Hub) Get(uid int) *Engine {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.engines[uid]; ok {
		return e
	}
	e := h.factory(uid)
	if h.closed {
		// shutting down: hand out an engine that fails every generation
		e.Close()
	}
	h.engines[uid] = e
	return e
}

// Lookup returns the engine for uid without creating one.
func (h *Hub) Lookup(uid int) (*Engine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.engines[uid]
	return e, ok
}

// Close closes every engine. Engines created by Get afterwards start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, e := range h.engines {
		e.Close()
	}
}
