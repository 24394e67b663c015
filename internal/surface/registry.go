package surface

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores live surfaces by ID. Safe for concurrent use from the
// computation and mounting contexts.
type Registry struct {
	mu    sync.RWMutex
	items map[ID]*Surface
}

func NewRegistry() *Registry {
	return &Registry{
		items: make(map[ID]*Surface),
	}
}

// Register adds a surface. A second registration for the same ID fails.
func (r *Registry) Register(s *Surface) error {
	if s == nil {
		return fmt.Errorf("%w: nil surface", ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, s.ID())
	}
	r.items[s.ID()] = s
	return nil
}

// Remove deletes and returns the surface for id.
func (r *Registry) Remove(id ID) (*Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, false
	}
	delete(r.items, id)
	return s, true
}

func (r *Registry) Get(id ID) (*Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	return s, ok
}

// List returns a snapshot ordered by ID.
func (r *Registry) List() []*Surface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Surface, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
