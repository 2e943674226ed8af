// Package navigate describes the navigation surface the session layer
// drives: in-place path changes, cross-domain assignments and reloads.
package navigate

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Navigator performs navigations on behalf of the session layer.
// Implementations must be safe for concurrent use.
type Navigator interface {
	// Navigate changes the path on the current host.
	Navigate(path string)
	// Assign loads an absolute URL, usually on another host.
	Assign(rawURL string)
	// Reload reloads the current location.
	Reload()
}

// Kind identifies the type of a recorded navigation.
type Kind int

const (
	KindNavigate Kind = iota
	KindAssign
	KindReload
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNavigate:
		return "navigate"
	case KindAssign:
		return "assign"
	case KindReload:
		return "reload"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one recorded navigation.
type Event struct {
	Kind   Kind
	Target string
}

// String formats the event as "kind target".
func (e Event) String() string {
	if e.Kind == KindReload {
		return e.Kind.String()
	}
	return e.Kind.String() + " " + e.Target
}

// Recorder is a Navigator that records every call. The CLI uses it to
// report where a command would have taken the user; tests use it to
// assert navigations.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Navigate(path string) { r.add(Event{Kind: KindNavigate, Target: path}) }
func (r *Recorder) Assign(rawURL string) { r.add(Event{Kind: KindAssign, Target: rawURL}) }
func (r *Recorder) Reload()              { r.add(Event{Kind: KindReload}) }

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Last returns the most recent event.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Funcs adapts plain functions to a Navigator. Nil fields are no-ops.
type Funcs struct {
	NavigateFunc func(path string)
	AssignFunc   func(rawURL string)
	ReloadFunc   func()
}

func (f Funcs) Navigate(path string) {
	if f.NavigateFunc != nil {
		f.NavigateFunc(path)
	}
}

func (f Funcs) Assign(rawURL string) {
	if f.AssignFunc != nil {
		f.AssignFunc(rawURL)
	}
}

func (f Funcs) Reload() {
	if f.ReloadFunc != nil {
		f.ReloadFunc()
	}
}

// AbsoluteURL builds scheme://host followed by target. target keeps its
// path, query and fragment verbatim.
func AbsoluteURL(scheme, host, target string) string {
	if scheme == "" {
		scheme = "https"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	u := url.URL{Scheme: scheme, Host: host}
	return u.String() + target
}
