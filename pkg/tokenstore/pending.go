package tokenstore

import "sync"

// Pending is the volatile pending-redirect slot: the path a user attempted
// before being sent to login. It holds at most one value and is never
// persisted.
type Pending struct {
	mu   sync.Mutex
	path string
	set  bool
}

// NewPending returns an empty slot.
func NewPending() *Pending {
	return &Pending{}
}

// Remember records path, replacing any earlier value.
func (p *Pending) Remember(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	p.set = true
}

// Take returns the recorded path and clears the slot.
func (p *Pending) Take() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path, ok := p.path, p.set
	p.path, p.set = "", false
	return path, ok
}

// Peek returns the recorded path without clearing it.
func (p *Pending) Peek() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path, p.set
}
