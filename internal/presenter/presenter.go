package presenter

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/surfacekit/internal/beat"
	"github.com/danmuck/surfacekit/internal/hostruntime"
	"github.com/danmuck/surfacekit/internal/layout"
	"github.com/danmuck/surfacekit/internal/mounting"
	"github.com/danmuck/surfacekit/internal/observability"
	"github.com/danmuck/surfacekit/internal/scheduler"
	"github.com/danmuck/surfacekit/internal/surface"
)

var (
	ErrDuplicateSurface = surface.ErrDuplicate
	ErrUnknownSurface   = surface.ErrNotFound
)

// rootComponentName is the component type every root view placeholder
// carries while parked or bound.
const rootComponentName = "RootView"

// Options tune one presenter. Zero values fall back to defaults.
type Options struct {
	ScaleFactor        float64
	Images             scheduler.ImageManager
	InstallUIManager   func()
	UninstallUIManager func()
}

// Presenter orchestrates surfaces between the computation engine and the
// mounting engine. It owns the scheduler's lifetime and the surface
// registry, and reacts to producer-runtime reload events.
type Presenter struct {
	registry *surface.Registry
	mounting *mounting.Manager
	handle   schedulerHandle

	scale  float64
	images scheduler.ImageManager

	installUIManager   func()
	uninstallUIManager func()

	notifier *hostruntime.Notifier
	token    hostruntime.Token

	runningMu sync.Mutex
	running   map[surface.ID]struct{}

	runtimeMu sync.Mutex
	runtime   hostruntime.Instance
}

// New wires the presenter as delegate of both engines and subscribes it to
// the host runtime's lifecycle notifier.
func New(m *mounting.Manager, notifier *hostruntime.Notifier, opts Options) *Presenter {
	p := &Presenter{
		registry:           surface.NewRegistry(),
		mounting:           m,
		running:            make(map[surface.ID]struct{}),
		scale:              opts.ScaleFactor,
		images:             opts.Images,
		installUIManager:   opts.InstallUIManager,
		uninstallUIManager: opts.UninstallUIManager,
		notifier:           notifier,
	}
	if p.scale <= 0 {
		p.scale = 1
	}
	if p.images == nil {
		p.images = scheduler.NopImages{}
	}
	p.handle.factory = p.newScheduler

	m.SetDelegate(p)
	if notifier != nil {
		p.token = notifier.Subscribe(p)
		p.runtime = notifier.Current()
	}
	return p
}

// Close detaches the presenter from the lifecycle notifier and tears the
// scheduler down. Surfaces should be unregistered first.
func (p *Presenter) Close() {
	if p.notifier != nil {
		p.notifier.Unsubscribe(p.token)
	}
	if old := p.handle.reset(); old != nil {
		old.Shutdown()
	}
}

func (p *Presenter) newScheduler() (*scheduler.Scheduler, error) {
	s, err := scheduler.New(scheduler.Dependencies{
		BeatFactories:      beat.Factories(p.mounting.Loop()),
		InstallUIManager:   p.installUIManager,
		UninstallUIManager: p.uninstallUIManager,
		Images:             p.images,
	})
	if err != nil {
		return nil, fmt.Errorf("presenter: construct scheduler: %w", err)
	}
	s.SetDelegate(p)
	observability.RecordSchedulerCreated()
	log.Info().Msgf("presenter.newScheduler created")
	return s, nil
}

// RegisterSurface adds s to the registry and starts it. Registering the
// same identifier twice fails.
func (p *Presenter) RegisterSurface(s *surface.Surface) error {
	if err := p.registry.Register(s); err != nil {
		return err
	}
	if err := p.startSurface(s); err != nil {
		p.registry.Remove(s.ID())
		return err
	}
	observability.RecordSurfaceRegistered(s.Module())
	log.Info().Msgf("presenter.RegisterSurface id=%s module=%q", s.ID(), s.Module())
	return nil
}

// UnregisterSurface stops s and removes it from the registry. Stopping an
// already-stopped surface is a no-op.
func (p *Presenter) UnregisterSurface(s *surface.Surface) error {
	p.stopSurface(s)
	if _, ok := p.registry.Remove(s.ID()); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSurface, s.ID())
	}
	observability.RecordSurfaceUnregistered()
	log.Info().Msgf("presenter.UnregisterSurface id=%s", s.ID())
	return nil
}

// SetProperties restarts the surface with new props. Deliberately not an
// incremental update; the stop/start pair keeps stage transitions and
// view-rebinding timing identical to a fresh registration.
func (p *Presenter) SetProperties(s *surface.Surface, props surface.Props) error {
	if _, ok := p.registry.Get(s.ID()); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSurface, s.ID())
	}
	p.stopSurface(s)
	s.SetProps(props)
	return p.startSurface(s)
}

// Measure synchronously queries the fitting size for the given bounds. May
// block until the computation engine answers.
func (p *Presenter) Measure(s *surface.Surface, min, max layout.Size) (layout.Size, error) {
	if _, ok := p.registry.Get(s.ID()); !ok {
		return layout.Size{}, fmt.Errorf("%w: %s", ErrUnknownSurface, s.ID())
	}
	sched, err := p.handle.ensure()
	if err != nil {
		return layout.Size{}, err
	}
	return sched.Measure(s.ID(), layout.NewConstraints(min, max), p.layoutContext()), nil
}

// Constrain updates the surface's live layout constraints asynchronously.
func (p *Presenter) Constrain(s *surface.Surface, min, max layout.Size) error {
	if _, ok := p.registry.Get(s.ID()); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSurface, s.ID())
	}
	s.SetSizeConstraints(min, max)
	sched, err := p.handle.ensure()
	if err != nil {
		return err
	}
	sched.Constrain(s.ID(), layout.NewConstraints(min, max), p.layoutContext())
	return nil
}

// SurfaceForID is a registry lookup passthrough.
func (p *Presenter) SurfaceForID(id surface.ID) (*surface.Surface, bool) {
	return p.registry.Get(id)
}

// Surfaces returns a registry snapshot ordered by ID, for the inspector.
func (p *Presenter) Surfaces() []*surface.Surface {
	return p.registry.List()
}

func (p *Presenter) layoutContext() layout.Context {
	return layout.Context{ScaleFactor: p.scale}
}

func (p *Presenter) startSurface(s *surface.Surface) error {
	sched, err := p.handle.ensure()
	if err != nil {
		return err
	}
	p.mounting.Loop().Perform(func() {
		p.mounting.DequeueRootView(s.ID(), rootComponentName)
	})
	if err := sched.StartSurface(s.ID(), s.Module(), s.Props()); err != nil {
		p.mounting.Loop().Perform(func() {
			p.mounting.EnqueueRootView(s.ID())
		})
		return err
	}
	p.setRunning(s.ID(), true)
	min, max := s.SizeConstraints()
	sched.Constrain(s.ID(), layout.NewConstraints(min, max), p.layoutContext())
	log.Debug().Msgf("presenter.startSurface id=%s", s.ID())
	return nil
}

// stopSurface is idempotent. The root view is returned to the pool on the
// mounting loop so in-flight transactions for the surface settle first.
func (p *Presenter) stopSurface(s *surface.Surface) {
	p.setRunning(s.ID(), false)
	if sched := p.handle.peek(); sched != nil {
		sched.StopSurface(s.ID())
	}
	p.mounting.Loop().Perform(func() {
		p.mounting.EnqueueRootView(s.ID())
		s.BindRootView(nil)
	})
	s.ResetStage()
	log.Debug().Msgf("presenter.stopSurface id=%s", s.ID())
}

func (p *Presenter) startAllSurfaces() {
	for _, s := range p.registry.List() {
		if err := p.startSurface(s); err != nil {
			log.Error().Msgf("presenter.startAllSurfaces id=%s err=%v", s.ID(), err)
		}
	}
}

func (p *Presenter) stopAllSurfaces() {
	for _, s := range p.registry.List() {
		p.stopSurface(s)
	}
}

func (p *Presenter) setRunning(id surface.ID, on bool) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()
	if on {
		p.running[id] = struct{}{}
		return
	}
	delete(p.running, id)
}

func (p *Presenter) isRunning(id surface.ID) bool {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()
	_, ok := p.running[id]
	return ok
}

// TransactionFinished is the scheduler delegate callback for one committed
// mutation batch. It runs on the computation context and only queues work.
func (p *Presenter) TransactionFinished(batch mounting.Batch) {
	s, ok := p.registry.Get(batch.Surface)
	if !ok {
		log.Warn().Msgf(
			"presenter.TransactionFinished dropped batch surface=%s revision=%d reason=unregistered",
			batch.Surface, batch.Revision,
		)
		observability.RecordMutationBatch(observability.BatchOutcomeDropped, len(batch.Mutations), 0)
		return
	}
	if !p.isRunning(batch.Surface) {
		log.Warn().Msgf(
			"presenter.TransactionFinished dropped batch surface=%s revision=%d reason=stopped",
			batch.Surface, batch.Revision,
		)
		observability.RecordMutationBatch(observability.BatchOutcomeDropped, len(batch.Mutations), 0)
		return
	}
	s.MarkPrepared()
	p.mounting.PerformTransaction(batch)
}

// PreliminaryViewAllocationRequested asks the mounting engine to construct
// a view of the given type ahead of first use. Stage-independent.
func (p *Presenter) PreliminaryViewAllocationRequested(component string) {
	p.mounting.PreliminaryAllocate(component)
}

// WillMount is reserved for pre-mount work; runs on the mounting loop.
func (p *Presenter) WillMount(id surface.ID) {
	log.Trace().Msgf("presenter.WillMount id=%s", id)
}

// DidMount marks the surface mounted and binds its root view, exactly once
// per mount cycle. Re-deliveries after the mounted bit is set are no-ops.
func (p *Presenter) DidMount(id surface.ID) {
	s, ok := p.registry.Get(id)
	if !ok {
		log.Warn().Msgf("presenter.DidMount stale id=%s reason=unregistered", id)
		return
	}
	if !s.Stage().Prepared() {
		log.Warn().Msgf("presenter.DidMount id=%s reason=not_prepared", id)
		return
	}
	newly, err := s.MarkMounted()
	if err != nil {
		log.Error().Msgf("presenter.DidMount id=%s err=%v", id, err)
		return
	}
	if !newly {
		return
	}
	if root, ok := p.mounting.ComponentView(mounting.RootTag(id)); ok {
		s.BindRootView(root)
	}
	log.Debug().Msgf("presenter.DidMount mounted id=%s", id)
}

// RuntimeWillReload tears the scheduler down ahead of a producer-runtime
// reload. With no scheduler live, a reload is already in progress and the
// signal is ignored.
func (p *Presenter) RuntimeWillReload() {
	if p.handle.peek() == nil {
		log.Debug().Msgf("presenter.RuntimeWillReload ignored reason=no_scheduler")
		return
	}
	p.stopAllSurfaces()
	p.mounting.Loop().Settle()
	if old := p.handle.reset(); old != nil {
		old.Shutdown()
	}
	observability.RecordRuntimeReload()
	log.Info().Msgf("presenter.RuntimeWillReload scheduler cleared")
}

// RuntimeReady adopts a new runtime instance and restarts the registered
// surfaces. Re-delivery of the current instance is a no-op.
func (p *Presenter) RuntimeReady(inst hostruntime.Instance) {
	p.runtimeMu.Lock()
	if inst.ID == p.runtime.ID {
		p.runtimeMu.Unlock()
		log.Debug().Msgf("presenter.RuntimeReady ignored instance=%s", inst.ID)
		return
	}
	p.runtime = inst
	p.runtimeMu.Unlock()

	p.startAllSurfaces()
	log.Info().Msgf("presenter.RuntimeReady adopted instance=%s", inst.ID)
}
