package presenter

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/surfacekit/internal/hostruntime"
	"github.com/danmuck/surfacekit/internal/layout"
	"github.com/danmuck/surfacekit/internal/mounting"
	"github.com/danmuck/surfacekit/internal/surface"
	"github.com/danmuck/surfacekit/internal/testutil/testlog"
)

type fixture struct {
	loop     *mounting.Loop
	manager  *mounting.Manager
	notifier *hostruntime.Notifier
	pres     *Presenter
	installs *atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	testlog.Start(t)

	loop := mounting.NewLoop()
	t.Cleanup(loop.Stop)

	manager := mounting.NewManager(loop, 64)
	notifier := hostruntime.NewNotifier()

	installs := &atomic.Int64{}
	pres := New(manager, notifier, Options{
		ScaleFactor:      2,
		InstallUIManager: func() { installs.Add(1) },
	})
	t.Cleanup(pres.Close)

	notifier.NotifyReady(hostruntime.NewInstance())

	return &fixture{
		loop:     loop,
		manager:  manager,
		notifier: notifier,
		pres:     pres,
		installs: installs,
	}
}

func (f *fixture) newSurface(t *testing.T, id surface.ID, module string, props surface.Props) *surface.Surface {
	t.Helper()
	s, err := surface.New(id, module, props)
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	s.SetSizeConstraints(layout.Size{}, layout.Size{Width: 100, Height: 100})
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitMounted(t *testing.T, s *surface.Surface) {
	t.Helper()
	waitFor(t, fmt.Sprintf("%s mounted", s.ID()), func() bool {
		return s.Stage().Mounted()
	})
}

func TestRegisterMeasureUnregisterScenario(t *testing.T) {
	f := newFixture(t)

	a := f.newSurface(t, 1, "Root", surface.Props{})
	if err := f.pres.RegisterSurface(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitMounted(t, a)

	if a.RootView() == nil {
		t.Fatalf("root view not bound after mount")
	}

	size, err := f.pres.Measure(a, layout.Size{}, layout.Size{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	bounds := layout.NewConstraints(layout.Size{}, layout.Size{Width: 100, Height: 100})
	if !bounds.Contains(size) {
		t.Fatalf("measured size %s escapes bounds", size)
	}

	depthBefore := f.manager.PoolDepth()
	if err := f.pres.UnregisterSurface(a); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	f.loop.Settle()

	if _, ok := f.pres.SurfaceForID(1); ok {
		t.Fatalf("surface still resolvable after unregister")
	}
	if f.manager.PoolDepth() != depthBefore+1 {
		t.Fatalf("root view not returned to pool: depth=%d", f.manager.PoolDepth())
	}
	if a.Stage() != surface.StageUnset {
		t.Fatalf("stage not reset: %s", a.Stage())
	}
}

func TestStageNeverMountedWithoutPrepared(t *testing.T) {
	f := newFixture(t)

	s := f.newSurface(t, 2, "Root", surface.Props{})
	if err := f.pres.RegisterSurface(s); err != nil {
		t.Fatalf("register: %v", err)
	}

	sawPrepared := false
	waitFor(t, "mounted with prepared first", func() bool {
		stage := s.Stage()
		if stage.Mounted() && !stage.Prepared() {
			t.Fatalf("mounted observed without prepared")
		}
		if stage.Prepared() {
			sawPrepared = true
		}
		return stage.Mounted()
	})
	if !sawPrepared {
		t.Fatalf("prepared never observed")
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	f := newFixture(t)

	s := f.newSurface(t, 3, "Root", surface.Props{})
	if err := f.pres.RegisterSurface(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	dup := f.newSurface(t, 3, "Other", surface.Props{})
	if err := f.pres.RegisterSurface(dup); !errors.Is(err, ErrDuplicateSurface) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUnregisterUnknownFails(t *testing.T) {
	f := newFixture(t)

	orphan := f.newSurface(t, 4, "Root", surface.Props{})
	if err := f.pres.UnregisterSurface(orphan); !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("expected unknown error, got %v", err)
	}
}

func TestUnregisterTwiceReturnsViewOnce(t *testing.T) {
	f := newFixture(t)

	s := f.newSurface(t, 5, "Root", surface.Props{})
	if err := f.pres.RegisterSurface(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitMounted(t, s)

	depthBefore := f.manager.PoolDepth()
	if err := f.pres.UnregisterSurface(s); err != nil {
		t.Fatalf("first unregister: %v", err)
	}
	if err := f.pres.UnregisterSurface(s); !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("second unregister: %v", err)
	}
	f.loop.Settle()

	if f.manager.PoolDepth() != depthBefore+1 {
		t.Fatalf("view enqueued more than once: depth=%d", f.manager.PoolDepth())
	}
}

func TestSetPropertiesRestartsSurface(t *testing.T) {
	f := newFixture(t)

	s := f.newSurface(t, 6, "Root", surface.Props{"width": 10.0})
	if err := f.pres.RegisterSurface(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitMounted(t, s)

	if err := f.pres.SetProperties(s, surface.Props{"width": 20.0}); err != nil {
		t.Fatalf("set properties: %v", err)
	}
	waitMounted(t, s)

	if got := s.Props()["width"]; got != 20.0 {
		t.Fatalf("props not replaced: %v", got)
	}

	unknown := f.newSurface(t, 60, "Root", surface.Props{})
	if err := f.pres.SetProperties(unknown, surface.Props{}); !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("expected unknown error, got %v", err)
	}
}

func TestMeasureUnknownSurfaceFails(t *testing.T) {
	f := newFixture(t)

	orphan := f.newSurface(t, 40, "Root", surface.Props{"width": 10.0})
	_, err := f.pres.Measure(orphan, layout.Size{}, layout.Size{Width: 100, Height: 100})
	if !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	if err := f.pres.Constrain(orphan, layout.Size{}, layout.Size{Width: 100, Height: 100}); !errors.Is(err, ErrUnknownSurface) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	if f.installs.Load() != 0 {
		t.Fatalf("unknown-surface call constructed a scheduler")
	}
}

func TestLateCommitAfterStopKeepsStageUnset(t *testing.T) {
	f := newFixture(t)

	s := f.newSurface(t, 41, "Root", surface.Props{})
	if err := f.pres.RegisterSurface(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitMounted(t, s)

	f.notifier.NotifyWillReload()
	if s.Stage() != surface.StageUnset {
		t.Fatalf("stage not reset by reload: %s", s.Stage())
	}

	// a commit computed before the stop may still arrive afterwards
	f.pres.TransactionFinished(mounting.Batch{
		Surface:  s.ID(),
		Revision: 3,
		Mutations: []mounting.Mutation{
			{Kind: mounting.MutationUpdate, Tag: mounting.RootTag(s.ID())},
		},
	})
	f.loop.Settle()

	if s.Stage() != surface.StageUnset {
		t.Fatalf("late commit mutated stage of stopped surface: %s", s.Stage())
	}
}

func TestStaleTransactionCallbackIsDropped(t *testing.T) {
	f := newFixture(t)

	before := f.pres.Surfaces()
	f.pres.TransactionFinished(mounting.Batch{
		Surface:  surface.ID(99),
		Revision: 1,
		Mutations: []mounting.Mutation{
			{Kind: mounting.MutationCreate, Tag: 9000, Component: "Label"},
		},
	})
	f.loop.Settle()

	if len(f.pres.Surfaces()) != len(before) {
		t.Fatalf("stale callback mutated registry state")
	}
	if _, ok := f.manager.ComponentView(9000); ok {
		t.Fatalf("stale callback created views")
	}
}

func TestStaleDidMountIsDropped(t *testing.T) {
	f := newFixture(t)

	f.pres.DidMount(surface.ID(123))
}

func TestReloadWithNoSchedulerIsNoop(t *testing.T) {
	f := newFixture(t)

	f.notifier.NotifyWillReload()
	if f.installs.Load() != 0 {
		t.Fatalf("reload without scheduler constructed one")
	}
}

func TestReloadRestartsRegisteredSurfaces(t *testing.T) {
	f := newFixture(t)

	b := f.newSurface(t, 7, "Root", surface.Props{})
	if err := f.pres.RegisterSurface(b); err != nil {
		t.Fatalf("register: %v", err)
	}
	waitMounted(t, b)
	if f.installs.Load() != 1 {
		t.Fatalf("expected one scheduler, got %d", f.installs.Load())
	}

	f.notifier.NotifyWillReload()
	if b.Stage() != surface.StageUnset {
		t.Fatalf("stage not reset by reload: %s", b.Stage())
	}
	if f.pres.handle.peek() != nil {
		t.Fatalf("scheduler handle not cleared by reload")
	}

	// duplicate signal while no scheduler exists is ignored
	f.notifier.NotifyWillReload()

	f.notifier.NotifyReady(hostruntime.NewInstance())
	waitMounted(t, b)
	if f.installs.Load() != 2 {
		t.Fatalf("expected exactly one recreated scheduler, got %d total", f.installs.Load())
	}
	if b.RootView() == nil {
		t.Fatalf("root view not rebound after reload")
	}
}

func TestRuntimeReadySameInstanceIsNoop(t *testing.T) {
	f := newFixture(t)

	inst := hostruntime.NewInstance()
	f.notifier.NotifyReady(inst)
	installed := f.installs.Load()
	f.notifier.NotifyReady(inst)
	if f.installs.Load() != installed {
		t.Fatalf("re-delivered runtime-ready constructed a scheduler")
	}
}

func TestConcurrentLifecycleLeaksNothing(t *testing.T) {
	f := newFixture(t)

	const workers = 24
	var wg sync.WaitGroup
	errs := make([]error, workers)
	kept := make([]*surface.Surface, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := surface.New(surface.ID(i+100), "Root", surface.Props{})
			if err != nil {
				errs[i] = err
				return
			}
			s.SetSizeConstraints(layout.Size{}, layout.Size{Width: 50, Height: 50})
			if err := f.pres.RegisterSurface(s); err != nil {
				errs[i] = err
				return
			}
			if i%2 == 0 {
				errs[i] = f.pres.UnregisterSurface(s)
				return
			}
			kept[i] = s
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if f.installs.Load() != 1 {
		t.Fatalf("concurrent ensure constructed %d schedulers", f.installs.Load())
	}
	if got := len(f.pres.Surfaces()); got != workers/2 {
		t.Fatalf("registry count: got %d want %d", got, workers/2)
	}

	for _, s := range kept {
		if s != nil {
			waitMounted(t, s)
		}
	}
	f.loop.Settle()

	if got := f.manager.Views().Len(); got != workers/2 {
		t.Fatalf("view registry count: got %d want %d", got, workers/2)
	}
}
