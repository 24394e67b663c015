package mounting

import (
	"sort"
	"sync"

	"github.com/danmuck/surfacekit/internal/surface"
)

// View is one live host view. Children order mirrors insertion order on the
// mounting loop; Views are only mutated there.
type View struct {
	Tag       ViewTag
	Component string
	Props     surface.Props
	Children  []*View
}

func newView(tag ViewTag, component string) *View {
	return &View{
		Tag:       tag,
		Component: component,
		Props:     surface.Props{},
	}
}

func (v *View) insertChild(child *View, index int) {
	if index < 0 || index > len(v.Children) {
		index = len(v.Children)
	}
	v.Children = append(v.Children, nil)
	copy(v.Children[index+1:], v.Children[index:])
	v.Children[index] = child
}

func (v *View) removeChild(tag ViewTag) {
	for i, child := range v.Children {
		if child.Tag == tag {
			v.Children = append(v.Children[:i], v.Children[i+1:]...)
			return
		}
	}
}

// ViewRegistry stores live views by tag. Reads may come from any goroutine;
// writes happen on the mounting loop only.
type ViewRegistry struct {
	mu    sync.RWMutex
	items map[ViewTag]*View
}

func NewViewRegistry() *ViewRegistry {
	return &ViewRegistry{
		items: make(map[ViewTag]*View),
	}
}

func (r *ViewRegistry) Put(v *View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[v.Tag] = v
}

func (r *ViewRegistry) Get(tag ViewTag) (*View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[tag]
	return v, ok
}

func (r *ViewRegistry) Remove(tag ViewTag) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[tag]
	if !ok {
		return nil, false
	}
	delete(r.items, tag)
	return v, true
}

// Tags returns a sorted snapshot, for the inspector.
func (r *ViewRegistry) Tags() []ViewTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ViewTag, 0, len(r.items))
	for tag := range r.items {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *ViewRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
