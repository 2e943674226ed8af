package tokenstore

import "testing"

func TestPendingTakeOnce(t *testing.T) {
	p := NewPending()
	if _, ok := p.Take(); ok {
		t.Fatal("new slot should be empty")
	}

	p.Remember("/auth/dashboards/reports?tab=2")
	if got, ok := p.Peek(); !ok || got != "/auth/dashboards/reports?tab=2" {
		t.Fatalf("Peek() = %q, %v", got, ok)
	}

	got, ok := p.Take()
	if !ok || got != "/auth/dashboards/reports?tab=2" {
		t.Fatalf("Take() = %q, %v", got, ok)
	}
	if _, ok := p.Take(); ok {
		t.Fatal("second Take should find the slot empty")
	}
}

func TestPendingLastWriterWins(t *testing.T) {
	p := NewPending()
	p.Remember("/a")
	p.Remember("/b")
	if got, _ := p.Take(); got != "/b" {
		t.Fatalf("Take() = %q, want /b", got)
	}
}
