package mounting

import (
	"sync"

	"github.com/danmuck/surfacekit/internal/observability"
)

const defaultPoolCapacity = 16

// ViewPool recycles root view placeholders. Dequeue hands out a recycled
// view (or a fresh one) retagged for the requesting surface; Enqueue parks
// it again. Past capacity, returned views are destroyed instead of parked.
type ViewPool struct {
	mu       sync.Mutex
	capacity int
	parked   []*View
}

func NewViewPool(capacity int) *ViewPool {
	if capacity <= 0 {
		capacity = defaultPoolCapacity
	}
	return &ViewPool{capacity: capacity}
}

func (p *ViewPool) Dequeue(tag ViewTag, component string) *View {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.parked); n > 0 {
		v := p.parked[n-1]
		p.parked = p.parked[:n-1]
		observability.RecordPoolDepth(len(p.parked))
		v.Tag = tag
		v.Component = component
		v.Props = nil
		v.Children = nil
		return v
	}
	observability.RecordPoolDepth(len(p.parked))
	return newView(tag, component)
}

func (p *ViewPool) Enqueue(v *View) {
	if v == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.parked) >= p.capacity {
		observability.RecordPoolOverflow()
		return
	}
	v.Children = nil
	v.Props = nil
	p.parked = append(p.parked, v)
	observability.RecordPoolDepth(len(p.parked))
}

func (p *ViewPool) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.parked)
}
