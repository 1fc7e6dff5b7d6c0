package service

import (
	"net/http/httptest"
	"testing"
)

func newTestTransport(t *testing.T) *SSETransport {
	t.Helper()
	transport, err := NewSSETransport(DefaultMessagesPath, httptest.NewRecorder())
	if err != nil {
		t.Fatalf("create transport: %v", err)
	}
	return transport
}

func TestRegistryPutGet(t *testing.T) {
	r := NewRegistry()
	transport := newTestTransport(t)

	r.Put(transport.SessionID(), transport)

	got, ok := r.Get(transport.SessionID())
	if !ok {
		t.Fatal("expected session to be registered")
	}
	if got != transport {
		t.Fatal("expected the same transport reference")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}
}

func TestRegistryGetAbsent(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected lookup miss for unknown id")
	}
}

func TestRegistryPutOverwrites(t *testing.T) {
	r := NewRegistry()
	first := newTestTransport(t)
	second := newTestTransport(t)

	r.Put("shared", first)
	r.Put("shared", second)

	got, ok := r.Get("shared")
	if !ok {
		t.Fatal("expected session to be registered")
	}
	if got != second {
		t.Fatal("expected the later transport to win")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session after overwrite, got %d", r.Len())
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	transport := newTestTransport(t)
	r.Put(transport.SessionID(), transport)

	r.Remove(transport.SessionID())
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}

	// Removing an absent id is a no-op, not an error.
	r.Remove(transport.SessionID())
	r.Remove("never-existed")
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistrySnapshotToleratesRemoval(t *testing.T) {
	r := NewRegistry()
	transports := make(map[*SSETransport]bool)
	for range 3 {
		transport := newTestTransport(t)
		r.Put(transport.SessionID(), transport)
		transports[transport] = true
	}

	snapshot := r.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 transports in snapshot, got %d", len(snapshot))
	}

	for _, transport := range snapshot {
		r.Remove(transport.SessionID())
		if !transports[transport] {
			t.Fatal("snapshot returned an unknown transport")
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryDrain(t *testing.T) {
	r := NewRegistry()
	for range 4 {
		transport := newTestTransport(t)
		r.Put(transport.SessionID(), transport)
	}

	drained := r.Drain()
	if len(drained) != 4 {
		t.Fatalf("expected 4 drained transports, got %d", len(drained))
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after drain, got %d", r.Len())
	}

	// Draining drops references only; the transports are still open.
	for _, transport := range drained {
		select {
		case <-transport.Done():
			t.Fatal("drain must not close transports")
		default:
		}
	}

	if len(r.Drain()) != 0 {
		t.Fatal("second drain should return nothing")
	}
}
