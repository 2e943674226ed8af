package expiry

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSignalWithoutCallback(t *testing.T) {
	n := NewNotifier()
	n.Signal()
	if n.Registered() {
		t.Fatal("new notifier reports a registered callback")
	}
}

func TestLastRegistrationWins(t *testing.T) {
	n := NewNotifier()
	var first, second int
	n.Register(func() { first++ })
	n.Register(func() { second++ })

	n.Signal()
	if first != 0 || second != 1 {
		t.Fatalf("first=%d second=%d, want 0 and 1", first, second)
	}
}

func TestUnregisterOnlyClearsOwnRegistration(t *testing.T) {
	n := NewNotifier()
	var old, current int
	unregisterOld := n.Register(func() { old++ })
	n.Register(func() { current++ })

	// A stale unmount must not clear the newer registration.
	unregisterOld()
	n.Signal()
	if current != 1 || old != 0 {
		t.Fatalf("old=%d current=%d, want 0 and 1", old, current)
	}
}

func TestUnregisterResetsSlot(t *testing.T) {
	n := NewNotifier()
	var calls int
	unregister := n.Register(func() { calls++ })
	unregister()
	unregister()

	n.Signal()
	if calls != 0 {
		t.Fatalf("calls = %d after unregister, want 0", calls)
	}
	if n.Registered() {
		t.Fatal("Registered() = true after unregister")
	}
}

func TestConcurrentSignal(t *testing.T) {
	n := NewNotifier()
	var calls atomic.Int64
	n.Register(func() { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Signal()
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 50 {
		t.Fatalf("calls = %d, want 50", got)
	}
}
