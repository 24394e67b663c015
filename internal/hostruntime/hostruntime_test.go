package hostruntime

import (
	"sync"
	"testing"
)

type countingListener struct {
	mu        sync.Mutex
	willCount int
	ready     []Instance
}

func (l *countingListener) RuntimeWillReload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.willCount++
}

func (l *countingListener) RuntimeReady(inst Instance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ready = append(l.ready, inst)
}

func TestNewInstanceIdentitiesDiffer(t *testing.T) {
	a := NewInstance()
	b := NewInstance()
	if !a.Valid() || !b.Valid() {
		t.Fatalf("instances must carry identities")
	}
	if a.ID == b.ID {
		t.Fatalf("instance identities collide")
	}
}

func TestNotifierDeliversAndUnsubscribes(t *testing.T) {
	n := NewNotifier()
	l := &countingListener{}
	tok := n.Subscribe(l)

	n.NotifyWillReload()
	inst := NewInstance()
	n.NotifyReady(inst)

	if l.willCount != 1 || len(l.ready) != 1 {
		t.Fatalf("delivery counts: will=%d ready=%d", l.willCount, len(l.ready))
	}
	if n.Current().ID != inst.ID {
		t.Fatalf("current instance not tracked")
	}

	n.Unsubscribe(tok)
	n.NotifyWillReload()
	if l.willCount != 1 {
		t.Fatalf("delivery after unsubscribe")
	}
}

func TestReloadAnnouncesFreshInstance(t *testing.T) {
	n := NewNotifier()
	l := &countingListener{}
	n.Subscribe(l)

	first := n.Reload()
	second := n.Reload()

	if l.willCount != 2 || len(l.ready) != 2 {
		t.Fatalf("reload delivery counts: will=%d ready=%d", l.willCount, len(l.ready))
	}
	if first.ID == second.ID {
		t.Fatalf("reload reused an instance identity")
	}
	if n.Current().ID != second.ID {
		t.Fatalf("current not updated by reload")
	}
}
