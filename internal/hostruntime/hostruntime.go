package hostruntime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Instance identifies one producer-runtime generation. Reload produces a
// fresh instance; consumers compare identities to detect adoption.
type Instance struct {
	ID        string
	StartedAt time.Time
}

func NewInstance() Instance {
	return Instance{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

func (i Instance) Valid() bool {
	return i.ID != ""
}

// Listener receives lifecycle notifications from the host runtime. Both
// signals may be re-delivered; consumers must stay idempotent.
type Listener interface {
	RuntimeWillReload()
	RuntimeReady(inst Instance)
}

// Token undoes one subscription.
type Token int64

// Notifier is the host runtime's lifecycle broadcast with scoped
// subscribe/unsubscribe instead of a process-wide notification bus.
type Notifier struct {
	mu      sync.Mutex
	subs    map[Token]Listener
	next    Token
	current Instance
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[Token]Listener),
	}
}

func (n *Notifier) Subscribe(l Listener) Token {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	n.subs[n.next] = l
	return n.next
}

func (n *Notifier) Unsubscribe(tok Token) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, tok)
}

// Current returns the most recently announced instance.
func (n *Notifier) Current() Instance {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Notifier) NotifyWillReload() {
	for _, l := range n.snapshot() {
		l.RuntimeWillReload()
	}
}

func (n *Notifier) NotifyReady(inst Instance) {
	n.mu.Lock()
	n.current = inst
	n.mu.Unlock()
	for _, l := range n.snapshot() {
		l.RuntimeReady(inst)
	}
}

// Reload announces a full reload cycle: will-reload, then a fresh instance.
func (n *Notifier) Reload() Instance {
	n.NotifyWillReload()
	inst := NewInstance()
	n.NotifyReady(inst)
	return inst
}

func (n *Notifier) snapshot() []Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Listener, 0, len(n.subs))
	for _, l := range n.subs {
		out = append(out, l)
	}
	return out
}
