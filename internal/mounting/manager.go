package mounting

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/surfacekit/internal/observability"
	"github.com/danmuck/surfacekit/internal/surface"
)

// Delegate receives mount progress callbacks on the mounting loop.
type Delegate interface {
	WillMount(id surface.ID)
	DidMount(id surface.ID)
}

// Manager is the mounting engine: it owns the component view registry and
// the root view pool, and applies mutation batches on the serialized loop.
type Manager struct {
	loop     *Loop
	views    *ViewRegistry
	pool     *ViewPool
	delegate Delegate
}

func NewManager(loop *Loop, poolCapacity int) *Manager {
	return &Manager{
		loop:  loop,
		views: NewViewRegistry(),
		pool:  NewViewPool(poolCapacity),
	}
}

// SetDelegate must be called before the first transaction.
func (m *Manager) SetDelegate(d Delegate) {
	m.delegate = d
}

func (m *Manager) Loop() *Loop {
	return m.loop
}

func (m *Manager) Views() *ViewRegistry {
	return m.views
}

func (m *Manager) PoolDepth() int {
	return m.pool.Depth()
}

// DequeueRootView parks-out (or creates) a root view placeholder for id and
// registers it under the surface's root tag.
func (m *Manager) DequeueRootView(id surface.ID, component string) *View {
	root := m.pool.Dequeue(RootTag(id), component)
	m.views.Put(root)
	return root
}

// EnqueueRootView unregisters id's root view and returns it to the pool.
// Unknown ids are a no-op so stop stays idempotent.
func (m *Manager) EnqueueRootView(id surface.ID) {
	root, ok := m.views.Remove(RootTag(id))
	if !ok {
		return
	}
	m.removeSubtree(root)
	m.pool.Enqueue(root)
}

func (m *Manager) removeSubtree(v *View) {
	for _, child := range v.Children {
		m.views.Remove(child.Tag)
		m.removeSubtree(child)
	}
}

// ComponentView looks a live view up by tag.
func (m *Manager) ComponentView(tag ViewTag) (*View, bool) {
	return m.views.Get(tag)
}

// PreliminaryAllocate eagerly constructs one recycled view of the given
// component type so the first real mount does not pay construction cost.
// The view is parked in the pool, not inserted anywhere.
func (m *Manager) PreliminaryAllocate(component string) {
	m.loop.Perform(func() {
		m.pool.Enqueue(newView(0, component))
		log.Debug().Msgf("mounting.PreliminaryAllocate component=%q", component)
	})
}

// PerformTransaction applies batch on the mounting loop, in submission
// order. Batches for a surface whose root view is gone (stopped or never
// started) are dropped. This runs the will-mount and did-mount delegate
// callbacks around the mutation pass.
func (m *Manager) PerformTransaction(batch Batch) {
	m.loop.Perform(func() {
		root, ok := m.views.Get(RootTag(batch.Surface))
		if !ok {
			log.Warn().Msgf(
				"mounting.PerformTransaction dropped batch surface=%s revision=%d reason=no_root_view",
				batch.Surface, batch.Revision,
			)
			observability.RecordMutationBatch(observability.BatchOutcomeDropped, len(batch.Mutations), 0)
			return
		}

		if m.delegate != nil {
			m.delegate.WillMount(batch.Surface)
		}

		start := time.Now()
		for _, mut := range batch.Mutations {
			m.apply(root, mut)
		}
		observability.RecordMutationBatch(
			observability.BatchOutcomeApplied, len(batch.Mutations), time.Since(start),
		)
		log.Debug().Msgf(
			"mounting.PerformTransaction applied surface=%s revision=%d mutations=%d",
			batch.Surface, batch.Revision, len(batch.Mutations),
		)

		if m.delegate != nil {
			m.delegate.DidMount(batch.Surface)
		}
	})
}

func (m *Manager) apply(root *View, mut Mutation) {
	switch mut.Kind {
	case MutationCreate:
		if _, exists := m.views.Get(mut.Tag); exists {
			return
		}
		v := newView(mut.Tag, mut.Component)
		v.Props = mut.Props.Clone()
		m.views.Put(v)
	case MutationDelete:
		m.views.Remove(mut.Tag)
	case MutationInsert:
		child, ok := m.views.Get(mut.Tag)
		if !ok {
			return
		}
		parent := root
		if mut.ParentTag != root.Tag {
			parent, ok = m.views.Get(mut.ParentTag)
			if !ok {
				return
			}
		}
		parent.insertChild(child, mut.Index)
	case MutationRemove:
		parent := root
		if mut.ParentTag != root.Tag {
			var ok bool
			parent, ok = m.views.Get(mut.ParentTag)
			if !ok {
				return
			}
		}
		parent.removeChild(mut.Tag)
	case MutationUpdate:
		v, ok := m.views.Get(mut.Tag)
		if !ok {
			return
		}
		v.Props = mut.Props.Clone()
	}
}
