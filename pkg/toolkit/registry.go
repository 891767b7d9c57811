package toolkit

import (
	"fmt"
	"sync"
)

// Registry tracks the tools added to one toolkit instance and which mouse
// button each active tool is bound to. Registration is idempotent so several
// viewers can share a toolkit without registering tools twice.
type Registry struct {
	mu     sync.RWMutex
	added  map[ToolName]bool
	active map[ToolName]MouseButton
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{
		added:  make(map[ToolName]bool),
		active: make(map[ToolName]MouseButton),
	}
}

// Add registers name and reports whether it was newly added
func (r *Registry) Add(name ToolName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.added[name] {
		return false
	}
	r.added[name] = true
	return true
}

// Has reports whether name was added
func (r *Registry) Has(name ToolName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.added[name]
}

// Activate binds name to mask. Any other tool bound to the same mask is
// deactivated, matching how a button drives a single tool at a time.
func (r *Registry) Activate(name ToolName, mask MouseButton) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.added[name] {
		return fmt.Errorf("activate %s: %w", name, ErrUnknownTool)
	}
	for other, m := range r.active {
		if other != name && m == mask {
			delete(r.active, other)
		}
	}
	r.active[name] = mask
	return nil
}

// ActiveFor returns the tool bound to mask
func (r *Registry) ActiveFor(mask MouseButton) (ToolName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, m := range r.active {
		if m == mask {
			return name, true
		}
	}
	return "", false
}
