package expiry

import "sync"

// Notifier holds at most one session-expired callback.
// It is safe for concurrent use.
type Notifier struct {
	mu  sync.Mutex
	cb  func()
	gen uint64
}

// NewNotifier creates a Notifier with no callback registered.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Register installs cb, replacing any previous callback. The returned
// function resets the slot to empty, but only if cb is still the
// registered callback; calling it more than once is harmless.
func (n *Notifier) Register(cb func()) (unregister func()) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.cb = cb
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		if n.gen == gen {
			n.cb = nil
		}
		n.mu.Unlock()
	}
}

// Signal invokes the registered callback, if any. The callback runs on
// the caller's goroutine without the Notifier's lock held.
func (n *Notifier) Signal() {
	n.mu.Lock()
	cb := n.cb
	n.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Registered reports whether a callback is installed.
func (n *Notifier) Registered() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cb != nil
}
