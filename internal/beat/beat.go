package beat

import (
	"sync"
	"sync/atomic"
)

// Factory keys registered once per scheduler instance.
const (
	KeySynchronous  = "synchronous"
	KeyAsynchronous = "asynchronous"
)

// Callback fires on the beat's owning context.
type Callback func()

// Beat is a cadence signal the computation engine uses to decide when to
// flush committed trees. Request is safe from any goroutine and coalesces.
type Beat interface {
	Request()
	Stop()
}

// Factory builds a beat wired to cb.
type Factory func(cb Callback) Beat

// Runner executes tasks on a serialized context. The mounting loop is the
// synchronous beat's runner.
type Runner interface {
	Perform(task func())
}

// Factories returns the two named factories a scheduler is constructed with.
func Factories(runner Runner) map[string]Factory {
	return map[string]Factory{
		KeySynchronous: func(cb Callback) Beat {
			return NewSynchronous(runner, cb)
		},
		KeyAsynchronous: func(cb Callback) Beat {
			return NewAsynchronous(cb)
		},
	}
}

// synchronousBeat fires on the runner's tick, i.e. the UI run loop.
type synchronousBeat struct {
	runner  Runner
	cb      Callback
	stopped atomic.Bool
}

func NewSynchronous(runner Runner, cb Callback) Beat {
	return &synchronousBeat{runner: runner, cb: cb}
}

func (b *synchronousBeat) Request() {
	if b.stopped.Load() {
		return
	}
	b.runner.Perform(func() {
		if b.stopped.Load() {
			return
		}
		b.cb()
	})
}

func (b *synchronousBeat) Stop() {
	b.stopped.Store(true)
}

// asynchronousBeat fires on its own background goroutine. Requests arriving
// while a fire is pending coalesce into one.
type asynchronousBeat struct {
	cb       Callback
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewAsynchronous(cb Callback) Beat {
	b := &asynchronousBeat{
		cb:   cb,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *asynchronousBeat) run() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
			select {
			case <-b.done:
				return
			default:
			}
			b.cb()
		}
	}
}

func (b *asynchronousBeat) Request() {
	select {
	case <-b.done:
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *asynchronousBeat) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}
