package session

import (
	"errors"
	"sync"
	"testing"
)

type nopTransport struct{}

func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) Writable() bool    { return true }
func (nopTransport) Close() error      { return nil }

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()
	tr := nopTransport{}

	s, err := r.Register("a", tr)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if s.ID != "a" {
		t.Errorf("ID = %q, want %q", s.ID, "a")
	}
	if s.ConnectedAt.IsZero() {
		t.Error("ConnectedAt should be set")
	}

	got, ok := r.Lookup("a")
	if !ok {
		t.Fatal("expected session to be found")
	}
	if got != tr {
		t.Error("Lookup returned a different transport")
	}

	r.Unregister("a")
	if _, ok := r.Lookup("a"); ok {
		t.Error("expected session to be absent after Unregister")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_LookupAbsent(t *testing.T) {
	r := NewRegistry()

	tr, ok := r.Lookup("missing")
	if ok {
		t.Error("expected ok = false for unknown ID")
	}
	if tr != nil {
		t.Error("expected nil transport for unknown ID")
	}

	// Unregistering an unknown ID is a no-op.
	r.Unregister("missing")
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("a", nopTransport{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Register("a", nopTransport{})
	if !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("err = %v, want %v", err, ErrDuplicateSession)
	}
}

func TestRegistry_Sessions(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		if _, err := r.Register(id, nopTransport{}); err != nil {
			t.Fatalf("Register(%q) failed: %v", id, err)
		}
	}

	got := r.Sessions()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].ID != want {
			t.Errorf("Sessions()[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewID()
			if _, err := r.Register(id, nopTransport{}); err != nil {
				t.Errorf("Register failed: %v", err)
				return
			}
			r.Lookup(id)
			r.Unregister(id)
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestNewID_UniqueAndOrdered(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	prev := ""

	for i := 0; i < n; i++ {
		id := NewID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID %q at iteration %d", id, i)
		}
		seen[id] = struct{}{}

		if id < prev {
			t.Fatalf("ID %q sorts before previous %q", id, prev)
		}
		prev = id
	}
}
