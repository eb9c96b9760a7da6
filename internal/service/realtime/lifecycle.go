package realtime

import "sync"

// Lifecycle is the host environment the cache attaches to.
// Registration functions return a remove func; the cache removes its hooks on Stop.
type Lifecycle interface {
	Visible() bool
	OnVisibilityChange(fn func(visible bool)) (remove func())
	OnTeardown(fn func()) (remove func())
}

// Hub is an in-process Lifecycle driven by the host (UI visibility reports, shutdown signals).
// Handlers are invoked outside the hub lock, in registration order.
type Hub struct {
	mu       sync.Mutex
	visible  bool
	nextID   int
	onVis    []visHandler
	onTear   []tearHandler
	tornDown bool
}

type visHandler struct {
	id int
	fn func(bool)
}

type tearHandler struct {
	id int
	fn func()
}

// NewHub creates a hub that starts out visible
func NewHub() *Hub {
	return &Hub{visible: true}
}

// Visible returns the current visibility
func (h *Hub) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}

// OnVisibilityChange registers a visibility handler
func (h *Hub) OnVisibilityChange(fn func(visible bool)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.onVis = append(h.onVis, visHandler{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, hd := range h.onVis {
				if hd.id == id {
					h.onVis = append(h.onVis[:i:i], h.onVis[i+1:]...)
					return
				}
			}
		})
	}
}

// OnTeardown registers a teardown handler
func (h *Hub) OnTeardown(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.onTear = append(h.onTear, tearHandler{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, hd := range h.onTear {
				if hd.id == id {
					h.onTear = append(h.onTear[:i:i], h.onTear[i+1:]...)
					return
				}
			}
		})
	}
}

// SetVisible records a visibility change and notifies handlers.
// Setting the current value again is a no-op.
func (h *Hub) SetVisible(visible bool) {
	h.mu.Lock()
	if h.visible == visible {
		h.mu.Unlock()
		return
	}
	h.visible = visible
	handlers := make([]visHandler, len(h.onVis))
	copy(handlers, h.onVis)
	h.mu.Unlock()

	for _, hd := range handlers {
		hd.fn(visible)
	}
}

// Teardown notifies teardown handlers once
func (h *Hub) Teardown() {
	h.mu.Lock()
	if h.tornDown {
		h.mu.Unlock()
		return
	}
	h.tornDown = true
	handlers := make([]tearHandler, len(h.onTear))
	copy(handlers, h.onTear)
	h.mu.Unlock()

	for _, hd := range handlers {
		hd.fn()
	}
}

// HandlerCount returns the number of registered handlers (visibility, teardown)
func (h *Hub) HandlerCount() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.onVis), len(h.onTear)
}
