package mounting

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

var ErrLoopStopped = errors.New("mounting: loop stopped")

// Loop is the serialized mounting context. Every view mutation, mount
// callback, and root-view binding executes on its single goroutine, in
// submission order. Perform never blocks the submitting goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	pending int
	settled *sync.Cond
	wake    chan struct{}
	done    chan struct{}
	stopped bool

	loopID   atomic.Int64
	stopOnce sync.Once
}

func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.settled = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	l.loopID.Store(goid.Get())
	for {
		select {
		case <-l.done:
			l.drain()
			return
		case <-l.wake:
			l.drain()
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		tasks := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range tasks {
			task()
			l.mu.Lock()
			l.pending--
			if l.pending == 0 {
				l.settled.Broadcast()
			}
			l.mu.Unlock()
		}
	}
}

// OnLoop reports whether the caller is the loop goroutine.
func (l *Loop) OnLoop() bool {
	return goid.Get() == l.loopID.Load()
}

// Perform queues task for serialized execution. Calls from the loop itself
// run inline to preserve ordering relative to the current task.
func (l *Loop) Perform(task func()) {
	if task == nil {
		return
	}
	if l.OnLoop() {
		task()
		return
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, task)
	l.pending++
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PerformSync runs task on the loop and waits for it. Test helper and
// synchronous-measure support.
func (l *Loop) PerformSync(task func()) {
	if l.OnLoop() {
		task()
		return
	}
	doneCh := make(chan struct{})
	l.Perform(func() {
		defer close(doneCh)
		task()
	})
	select {
	case <-doneCh:
	case <-l.done:
	}
}

// Settle blocks until every task queued so far has executed. Safe to call
// concurrently with Perform from other goroutines.
func (l *Loop) Settle() {
	l.mu.Lock()
	for l.pending > 0 {
		l.settled.Wait()
	}
	l.mu.Unlock()
}

// Stop drains queued work and shuts the loop down. Idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()
		close(l.done)
	})
}
