package grid

import (
	"sync"

	"github.com/starford/dagaz/internal/apperr"
)

// Handle is an explicit reference to an adapter that may not exist yet.
// The zero value is not ready. Calls on an unready handle return ErrNotReady.
type Handle struct {
	mu sync.Mutex
	a  *Adapter
}

// Attach makes the handle ready with a.
func (h *Handle) Attach(a *Adapter) {
	h.mu.Lock()
	h.a = a
	h.mu.Unlock()
}

// Detach returns the handle to the unready state.
func (h *Handle) Detach() {
	h.Attach(nil)
}

// Ready reports whether an adapter is attached.
func (h *Handle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.a != nil
}

// Do runs fn with exclusive access to the attached adapter.
func (h *Handle) Do(fn func(*Adapter) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.a == nil {
		return apperr.ErrNotReady
	}
	return fn(h.a)
}
