package expiry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	var ev Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	return ev
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastAndChoice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	choices := make(chan Choice, 1)
	hub := NewHub(WithChoiceHandler(func(_ context.Context, c Choice) {
		choices <- c
	}))
	srv := httptest.NewServer(hub)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	prompt := NewPrompt(WithPresenter(hub))
	prompt.Raise()
	prompt.Raise()

	if ev := readEvent(t, conn); ev.Type != EventSessionExpired {
		t.Fatalf("event = %q, want %q", ev.Type, EventSessionExpired)
	}

	if err := conn.WriteJSON(ChoiceMessage{Choice: ChoiceRefresh}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	select {
	case c := <-choices:
		if c != ChoiceRefresh {
			t.Fatalf("choice = %q, want refresh", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("choice handler not called")
	}

	prompt.Dismiss()
	if ev := readEvent(t, conn); ev.Type != EventSessionRestored {
		t.Fatalf("event = %q, want %q", ev.Type, EventSessionRestored)
	}

	conn.Close()
	hub.Close()
	srv.Close()
}

func TestHubIgnoresChoiceWhenNotExpired(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	called := make(chan struct{}, 1)
	hub := NewHub(WithChoiceHandler(func(context.Context, Choice) {
		called <- struct{}{}
	}))
	srv := httptest.NewServer(hub)

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	_ = conn.WriteJSON(ChoiceMessage{Choice: ChoiceRelogin})
	_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))

	select {
	case <-called:
		t.Fatal("choice handled while no prompt was active")
	case <-time.After(100 * time.Millisecond):
	}

	conn.Close()
	waitForClients(t, hub, 0)
	srv.Close()
}

func TestHubLateJoinerSeesExpired(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub()
	srv := httptest.NewServer(hub)

	hub.ShowExpired()
	conn := dialHub(t, srv)
	if ev := readEvent(t, conn); ev.Type != EventSessionExpired {
		t.Fatalf("late joiner event = %q, want %q", ev.Type, EventSessionExpired)
	}

	hub.Close()
	conn.Close()
	srv.Close()
}

// pipeListener serves connections made with net.Pipe, whose writes block
// until the peer reads.
type pipeListener struct {
	conns chan net.Conn
	once  sync.Once
	done  chan struct{}
}

func newPipeListener() *pipeListener {
	return &pipeListener{conns: make(chan net.Conn), done: make(chan struct{})}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *pipeListener) Addr() net.Addr { return pipeAddr{} }

func (l *pipeListener) dial(ctx context.Context, _, _ string) (net.Conn, error) {
	server, client := net.Pipe()
	select {
	case l.conns <- server:
		return client, nil
	case <-l.done:
		return nil, errors.New("listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

func TestHubDropsStalledClient(t *testing.T) {
	hub := NewHub(WithWriteTimeout(50 * time.Millisecond))
	l := newPipeListener()
	srv := &http.Server{Handler: hub}
	go srv.Serve(l)
	defer srv.Close()

	dialer := websocket.Dialer{NetDialContext: l.dial, HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial("ws://hub.test/", nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	// The client never reads, so the write can only end by deadline.
	done := make(chan struct{})
	go func() {
		hub.ShowExpired()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ShowExpired blocked on a stalled client")
	}
	waitForClients(t, hub, 0)
}
