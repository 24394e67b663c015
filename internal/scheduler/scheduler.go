package scheduler

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/surfacekit/internal/beat"
	"github.com/danmuck/surfacekit/internal/layout"
	"github.com/danmuck/surfacekit/internal/mounting"
	"github.com/danmuck/surfacekit/internal/surface"
)

var (
	ErrMissingBeatFactory  = errors.New("scheduler: missing event beat factory")
	ErrSurfaceStarted      = errors.New("scheduler: surface already started")
	ErrSurfaceNotStarted   = errors.New("scheduler: surface not started")
	ErrMissingImageManager = errors.New("scheduler: missing image manager")
)

// Delegate receives commit output. TransactionFinished runs on the
// computation context; implementations must only queue work from it.
type Delegate interface {
	TransactionFinished(batch mounting.Batch)
	PreliminaryViewAllocationRequested(component string)
}

// ImageManager resolves image assets referenced by surface props.
type ImageManager interface {
	Prefetch(source string)
}

// Dependencies is the injection context a scheduler is constructed with.
// Both beat factories, the UI-manager hooks, and the image manager are
// registered exactly once per scheduler instance.
type Dependencies struct {
	BeatFactories      map[string]beat.Factory
	InstallUIManager   func()
	UninstallUIManager func()
	Images             ImageManager
}

type task struct {
	module      string
	props       surface.Props
	constraints layout.Constraints
	ctx         layout.Context
	revision    uint64
	childTags   []mounting.ViewTag
	dirty       bool
}

// Scheduler owns the tree-computation engine for all surfaces of one
// producer-runtime generation. Committed batches flush on the asynchronous
// beat; constraint application aligns on the synchronous beat.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[surface.ID]*task

	delegate atomic.Pointer[delegateBox]
	images   ImageManager

	syncBeat  beat.Beat
	asyncBeat beat.Beat
	uninstall func()

	seenComponents sync.Map
	nextTag        atomic.Int64
	shutdown       atomic.Bool
}

type delegateBox struct {
	d Delegate
}

// New wires the dependency context and installs the UI-manager hooks.
// Construction failure is fatal to the caller; there is no retry here.
func New(deps Dependencies) (*Scheduler, error) {
	syncFactory, ok := deps.BeatFactories[beat.KeySynchronous]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingBeatFactory, beat.KeySynchronous)
	}
	asyncFactory, ok := deps.BeatFactories[beat.KeyAsynchronous]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingBeatFactory, beat.KeyAsynchronous)
	}
	if deps.Images == nil {
		return nil, ErrMissingImageManager
	}

	s := &Scheduler{
		tasks:  make(map[surface.ID]*task),
		images: deps.Images,
	}
	s.nextTag.Store(1 << 20)
	s.syncBeat = syncFactory(s.applyStagedConstraints)
	s.asyncBeat = asyncFactory(s.flushCommits)

	if deps.InstallUIManager != nil {
		deps.InstallUIManager()
	}
	s.uninstall = deps.UninstallUIManager

	log.Debug().Msgf("scheduler.New constructed")
	return s, nil
}

func (s *Scheduler) SetDelegate(d Delegate) {
	s.delegate.Store(&delegateBox{d: d})
}

func (s *Scheduler) currentDelegate() Delegate {
	box := s.delegate.Load()
	if box == nil {
		return nil
	}
	return box.d
}

// StartSurface registers the computation task for one surface. The first
// commit happens after the subsequent Constrain call marks it dirty.
func (s *Scheduler) StartSurface(id surface.ID, module string, props surface.Props) error {
	if s.shutdown.Load() {
		return fmt.Errorf("%w: scheduler is shut down", ErrSurfaceNotStarted)
	}
	s.mu.Lock()
	if _, ok := s.tasks[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSurfaceStarted, id)
	}
	s.tasks[id] = &task{
		module: module,
		props:  props.Clone(),
		ctx:    layout.DefaultContext(),
	}
	s.mu.Unlock()

	s.announceComponents(props)
	s.prefetchAssets(props)
	log.Debug().Msgf("scheduler.StartSurface id=%s module=%q", id, module)
	return nil
}

// StopSurface is idempotent; in-flight commits for the surface may still be
// delivered afterwards and are the consumer's to drop.
func (s *Scheduler) StopSurface(id surface.ID) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
	log.Debug().Msgf("scheduler.StopSurface id=%s", id)
}

// Measure synchronously computes the fitting size for the given constraints
// without touching task state.
func (s *Scheduler) Measure(id surface.ID, constraints layout.Constraints, ctx layout.Context) layout.Size {
	s.mu.Lock()
	var props surface.Props
	if t, ok := s.tasks[id]; ok {
		props = t.props
	}
	s.mu.Unlock()
	return fittingSize(props, constraints, ctx)
}

// Constrain stages new layout constraints for id and requests the
// synchronous beat so they apply aligned with the UI tick.
func (s *Scheduler) Constrain(id surface.ID, constraints layout.Constraints, ctx layout.Context) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	t.constraints = constraints
	t.ctx = ctx
	t.dirty = true
	s.mu.Unlock()

	s.syncBeat.Request()
}

// SetProps replaces a task's props and schedules a recompute.
func (s *Scheduler) SetProps(id surface.ID, props surface.Props) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSurfaceNotStarted, id)
	}
	t.props = props.Clone()
	t.dirty = true
	s.mu.Unlock()

	s.announceComponents(props)
	s.prefetchAssets(props)
	s.asyncBeat.Request()
	return nil
}

// Shutdown tears both beats down and uninstalls the UI-manager hooks. The
// instance is dead afterwards; a replacement must be constructed fresh.
func (s *Scheduler) Shutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	s.syncBeat.Stop()
	s.asyncBeat.Stop()
	if s.uninstall != nil {
		s.uninstall()
	}
	log.Debug().Msgf("scheduler.Shutdown complete")
}

// applyStagedConstraints runs on the synchronous beat; it promotes staged
// constraint changes into commit work and hands off to the async beat.
func (s *Scheduler) applyStagedConstraints() {
	s.asyncBeat.Request()
}

// flushCommits runs on the asynchronous beat goroutine, the computation
// context. It computes one revision per dirty task and delivers batches in
// surface order.
func (s *Scheduler) flushCommits() {
	d := s.currentDelegate()

	s.mu.Lock()
	ids := make([]surface.ID, 0, len(s.tasks))
	for id, t := range s.tasks {
		if t.dirty {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	batches := make([]mounting.Batch, 0, len(ids))
	for _, id := range ids {
		t := s.tasks[id]
		t.dirty = false
		t.revision++
		batches = append(batches, s.commitLocked(id, t))
	}
	s.mu.Unlock()

	if d == nil {
		return
	}
	for _, b := range batches {
		d.TransactionFinished(b)
	}
}

// commitLocked builds the mutation batch for one revision. Callers hold mu.
func (s *Scheduler) commitLocked(id surface.ID, t *task) mounting.Batch {
	rootTag := mounting.RootTag(id)
	size := fittingSize(t.props, t.constraints, t.ctx)

	muts := []mounting.Mutation{{
		Kind: mounting.MutationUpdate,
		Tag:  rootTag,
		Props: surface.Props{
			"width":  size.Width,
			"height": size.Height,
			"module": t.module,
		},
	}}

	children := childSpecs(t.props)
	for i, child := range children {
		if i < len(t.childTags) {
			muts = append(muts, mounting.Mutation{
				Kind:  mounting.MutationUpdate,
				Tag:   t.childTags[i],
				Props: child.props,
			})
			continue
		}
		tag := mounting.ViewTag(s.nextTag.Add(1))
		t.childTags = append(t.childTags, tag)
		muts = append(muts,
			mounting.Mutation{
				Kind:      mounting.MutationCreate,
				Tag:       tag,
				Component: child.component,
				Props:     child.props,
			},
			mounting.Mutation{
				Kind:      mounting.MutationInsert,
				Tag:       tag,
				ParentTag: rootTag,
				Index:     i,
			},
		)
	}

	return mounting.Batch{
		Surface:   id,
		Revision:  t.revision,
		Mutations: muts,
	}
}

type childSpec struct {
	component string
	props     surface.Props
}

func childSpecs(props surface.Props) []childSpec {
	raw, ok := props["children"].([]any)
	if !ok {
		return nil
	}
	out := make([]childSpec, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		component, _ := m["component"].(string)
		if component == "" {
			continue
		}
		childProps, _ := m["props"].(map[string]any)
		out = append(out, childSpec{
			component: component,
			props:     surface.Props(childProps).Clone(),
		})
	}
	return out
}

// announceComponents emits one preliminary-allocation request per component
// type the scheduler instance has not seen before.
func (s *Scheduler) announceComponents(props surface.Props) {
	d := s.currentDelegate()
	if d == nil {
		return
	}
	for _, child := range childSpecs(props) {
		if _, seen := s.seenComponents.LoadOrStore(child.component, struct{}{}); !seen {
			d.PreliminaryViewAllocationRequested(child.component)
		}
	}
}

func (s *Scheduler) prefetchAssets(props surface.Props) {
	if src, ok := props["image"].(string); ok && src != "" {
		s.images.Prefetch(src)
	}
	for _, child := range childSpecs(props) {
		if src, ok := child.props["image"].(string); ok && src != "" {
			s.images.Prefetch(src)
		}
	}
}

// fittingSize resolves the intrinsic size declared in props, clamps it into
// the constraints, and rounds to the device pixel grid.
func fittingSize(props surface.Props, constraints layout.Constraints, ctx layout.Context) layout.Size {
	intrinsic := constraints.Max
	if w, ok := toFloat(props["width"]); ok {
		intrinsic.Width = w
	}
	if h, ok := toFloat(props["height"]); ok {
		intrinsic.Height = h
	}
	size := constraints.Clamp(intrinsic)
	scale := ctx.ScaleFactor
	if scale <= 0 {
		scale = 1
	}
	return layout.Size{
		Width:  math.Round(size.Width*scale) / scale,
		Height: math.Round(size.Height*scale) / scale,
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
