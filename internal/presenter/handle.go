package presenter

import (
	"sync"

	"github.com/danmuck/surfacekit/internal/scheduler"
)

// schedulerHandle owns the at-most-one live scheduler instance. The mutex
// guards only the pointer; the scheduler's operations are independently
// thread-safe per its own contract.
type schedulerHandle struct {
	mu      sync.Mutex
	current *scheduler.Scheduler
	factory func() (*scheduler.Scheduler, error)
}

// ensure returns the live instance, constructing it on first use. Safe to
// call from any goroutine; exactly one instance is constructed between a
// reset and the next ensure.
func (h *schedulerHandle) ensure() (*scheduler.Scheduler, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		return h.current, nil
	}
	s, err := h.factory()
	if err != nil {
		return nil, err
	}
	h.current = s
	return s, nil
}

// peek returns the live instance without creating one.
func (h *schedulerHandle) peek() *scheduler.Scheduler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// reset clears the handle and returns the replaced instance, nil if none.
func (h *schedulerHandle) reset() *scheduler.Scheduler {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.current
	h.current = nil
	return old
}
