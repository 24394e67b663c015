package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/surfacekit/internal/beat"
	"github.com/danmuck/surfacekit/internal/layout"
	"github.com/danmuck/surfacekit/internal/mounting"
	"github.com/danmuck/surfacekit/internal/surface"
	"github.com/danmuck/surfacekit/internal/testutil/testlog"
)

type inlineRunner struct{}

func (inlineRunner) Perform(task func()) {
	task()
}

type captureDelegate struct {
	mu       sync.Mutex
	batches  []mounting.Batch
	prealloc []string
}

func (d *captureDelegate) TransactionFinished(batch mounting.Batch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, batch)
}

func (d *captureDelegate) PreliminaryViewAllocationRequested(component string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prealloc = append(d.prealloc, component)
}

func (d *captureDelegate) batchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

func (d *captureDelegate) lastBatch() (mounting.Batch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.batches) == 0 {
		return mounting.Batch{}, false
	}
	return d.batches[len(d.batches)-1], true
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

func newTestScheduler(t *testing.T) (*Scheduler, *captureDelegate) {
	t.Helper()
	testlog.Start(t)
	s, err := New(Dependencies{
		BeatFactories: beat.Factories(inlineRunner{}),
		Images:        NopImages{},
	})
	if err != nil {
		t.Fatalf("construct scheduler: %v", err)
	}
	d := &captureDelegate{}
	s.SetDelegate(d)
	t.Cleanup(s.Shutdown)
	return s, d
}

func TestNewRequiresBothBeatFactories(t *testing.T) {
	testlog.Start(t)
	_, err := New(Dependencies{
		BeatFactories: map[string]beat.Factory{
			beat.KeySynchronous: func(cb beat.Callback) beat.Beat {
				return beat.NewSynchronous(inlineRunner{}, cb)
			},
		},
		Images: NopImages{},
	})
	if err == nil {
		t.Fatalf("expected missing-factory error")
	}
}

func TestNewInstallsAndShutdownUninstalls(t *testing.T) {
	testlog.Start(t)
	var installs, uninstalls atomic.Int64
	s, err := New(Dependencies{
		BeatFactories:      beat.Factories(inlineRunner{}),
		InstallUIManager:   func() { installs.Add(1) },
		UninstallUIManager: func() { uninstalls.Add(1) },
		Images:             NopImages{},
	})
	if err != nil {
		t.Fatalf("construct scheduler: %v", err)
	}
	if installs.Load() != 1 {
		t.Fatalf("install hook: got %d calls", installs.Load())
	}
	s.Shutdown()
	s.Shutdown()
	if uninstalls.Load() != 1 {
		t.Fatalf("uninstall hook: got %d calls", uninstalls.Load())
	}
}

func TestStartConstrainDeliversCommit(t *testing.T) {
	s, d := newTestScheduler(t)

	const id = surface.ID(1)
	if err := s.StartSurface(id, "Root", surface.Props{"width": 50.0, "height": 60.0}); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Constrain(id,
		layout.NewConstraints(layout.Size{}, layout.Size{Width: 100, Height: 100}),
		layout.DefaultContext(),
	)

	waitFor(t, "first commit", func() bool { return d.batchCount() >= 1 })

	batch, _ := d.lastBatch()
	if batch.Surface != id || batch.Revision != 1 {
		t.Fatalf("unexpected batch: surface=%s revision=%d", batch.Surface, batch.Revision)
	}
	if len(batch.Mutations) == 0 || batch.Mutations[0].Kind != mounting.MutationUpdate {
		t.Fatalf("expected leading root update mutation")
	}
	if w := batch.Mutations[0].Props["width"]; w != 50.0 {
		t.Fatalf("committed width: got %v", w)
	}
}

func TestStartSurfaceRejectsDuplicate(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.StartSurface(1, "Root", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.StartSurface(1, "Root", nil); err == nil {
		t.Fatalf("expected duplicate-start error")
	}
}

func TestStopSurfaceIsIdempotent(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.StartSurface(1, "Root", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.StopSurface(1)
	s.StopSurface(1)
}

func TestMeasureClampsAndScales(t *testing.T) {
	s, _ := newTestScheduler(t)
	const id = surface.ID(2)
	if err := s.StartSurface(id, "Root", surface.Props{"width": 33.4, "height": 500.0}); err != nil {
		t.Fatalf("start: %v", err)
	}

	constraints := layout.NewConstraints(layout.Size{}, layout.Size{Width: 100, Height: 100})
	size := s.Measure(id, constraints, layout.Context{ScaleFactor: 2})
	if size.Height != 100 {
		t.Fatalf("height not clamped: %g", size.Height)
	}
	if size.Width != 33.5 {
		t.Fatalf("width not rounded to half-pixel grid: %g", size.Width)
	}
	if !constraints.Contains(size) {
		t.Fatalf("measured size %s escapes constraints", size)
	}
}

func TestSetPropsCommitsNewRevision(t *testing.T) {
	s, d := newTestScheduler(t)
	const id = surface.ID(3)
	if err := s.StartSurface(id, "Root", surface.Props{"width": 10.0}); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Constrain(id,
		layout.NewConstraints(layout.Size{}, layout.Size{Width: 100, Height: 100}),
		layout.DefaultContext(),
	)
	waitFor(t, "first commit", func() bool { return d.batchCount() >= 1 })

	if err := s.SetProps(id, surface.Props{"width": 20.0}); err != nil {
		t.Fatalf("set props: %v", err)
	}
	waitFor(t, "second commit", func() bool { return d.batchCount() >= 2 })

	batch, _ := d.lastBatch()
	if batch.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", batch.Revision)
	}
}

func TestChildrenProduceCreateInsertAndPrealloc(t *testing.T) {
	s, d := newTestScheduler(t)
	const id = surface.ID(4)
	props := surface.Props{
		"children": []any{
			map[string]any{"component": "Label", "props": map[string]any{"text": "hi"}},
			map[string]any{"component": "Image", "props": map[string]any{"image": "logo.png"}},
		},
	}
	if err := s.StartSurface(id, "Root", props); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Constrain(id,
		layout.NewConstraints(layout.Size{}, layout.Size{Width: 100, Height: 100}),
		layout.DefaultContext(),
	)
	waitFor(t, "commit with children", func() bool { return d.batchCount() >= 1 })

	batch, _ := d.lastBatch()
	var creates, inserts int
	for _, mut := range batch.Mutations {
		switch mut.Kind {
		case mounting.MutationCreate:
			creates++
		case mounting.MutationInsert:
			inserts++
		}
	}
	if creates != 2 || inserts != 2 {
		t.Fatalf("child mutations: creates=%d inserts=%d", creates, inserts)
	}

	d.mu.Lock()
	prealloc := len(d.prealloc)
	d.mu.Unlock()
	if prealloc != 2 {
		t.Fatalf("expected 2 preliminary allocation requests, got %d", prealloc)
	}
}
