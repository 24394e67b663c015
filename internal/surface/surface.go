package surface

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/surfacekit/internal/layout"
)

var (
	ErrDuplicate     = errors.New("surface: duplicate surface id")
	ErrNotFound      = errors.New("surface: surface not found")
	ErrInvalidModule = errors.New("surface: invalid module name")
	ErrNotPrepared   = errors.New("surface: mounted stage requires prepared")
)

// ID identifies one surface. Stable for the surface's whole lifetime.
type ID int64

func (id ID) String() string {
	return fmt.Sprintf("surface.%d", int64(id))
}

// Props is the opaque key-value document handed to the computation engine.
type Props map[string]any

// Clone returns a shallow copy so callers cannot mutate stored props.
func (p Props) Clone() Props {
	if p == nil {
		return Props{}
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Surface is one independently mountable UI tree. Stage and root-view binding
// are mutated only through the guarded methods below; stage transitions for a
// given surface are serialized by the mounting consumer.
type Surface struct {
	id     ID
	module string

	mu       sync.RWMutex
	props    Props
	minSize  layout.Size
	maxSize  layout.Size
	stage    Stage
	rootView any
}

// New validates the module name and builds an unstarted surface.
func New(id ID, module string, props Props) (*Surface, error) {
	if strings.TrimSpace(module) == "" {
		return nil, fmt.Errorf("%w: missing module name for %s", ErrInvalidModule, id)
	}
	return &Surface{
		id:     id,
		module: module,
		props:  props.Clone(),
	}, nil
}

func (s *Surface) ID() ID {
	return s.id
}

func (s *Surface) Module() string {
	return s.module
}

func (s *Surface) Props() Props {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props.Clone()
}

func (s *Surface) SetProps(props Props) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = props.Clone()
}

func (s *Surface) SizeConstraints() (layout.Size, layout.Size) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minSize, s.maxSize
}

func (s *Surface) SetSizeConstraints(min, max layout.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minSize = min
	s.maxSize = max
}

func (s *Surface) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// MarkPrepared records that a committed tree exists for the current cycle.
func (s *Surface) MarkPrepared() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage |= StagePrepared
}

// MarkMounted sets the mounted bit. It reports whether this call performed
// the transition, so the caller can bind the root view exactly once per
// cycle. Mounted without prepared is a contract violation.
func (s *Surface) MarkMounted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stage.Prepared() {
		return false, fmt.Errorf("%w: %s", ErrNotPrepared, s.id)
	}
	if s.stage.Mounted() {
		return false, nil
	}
	s.stage |= StageMounted
	return true, nil
}

// ResetStage clears both bits. Called on stop from any state.
func (s *Surface) ResetStage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = StageUnset
}

// RootView returns the bound host-side root view, nil before first mount.
func (s *Surface) RootView() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootView
}

// BindRootView is called by the orchestrator on the mounting loop only.
func (s *Surface) BindRootView(view any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootView = view
}
