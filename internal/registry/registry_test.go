package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeConn is a minimal Conn implementation that records written frames.
type fakeConn struct {
	mu         sync.Mutex
	frames     [][]byte
	closed     bool
	failWrites bool
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("write failed")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestRegister_ReplacesAndReturnsPrevious(t *testing.T) {
	r := New()
	first := &fakeConn{}
	second := &fakeConn{}

	if prev := r.Register("u1", first); prev != nil {
		t.Fatalf("expected no previous handle, got %v", prev)
	}
	if prev := r.Register("u1", second); prev != first {
		t.Fatalf("expected previous handle to be the first connection")
	}
	if r.Count() != 1 {
		t.Fatalf("expected exactly one entry for u1, got %d", r.Count())
	}

	conn, ok := r.Lookup("u1")
	if !ok || conn != second {
		t.Fatal("expected lookup to return the replacing connection")
	}
}

func TestUnregister_StaleHandleIsIgnored(t *testing.T) {
	r := New()
	old := &fakeConn{}
	fresh := &fakeConn{}

	r.Register("u1", old)
	r.Register("u1", fresh)

	// The old connection's close callback fires after the user reconnected.
	// It must not remove the newer registration.
	if r.Unregister("u1", old) {
		t.Fatal("stale unregister should report no removal")
	}
	if _, ok := r.Lookup("u1"); !ok {
		t.Fatal("fresh connection was clobbered by a stale unregister")
	}

	if !r.Unregister("u1", fresh) {
		t.Fatal("expected current handle to unregister")
	}
	if _, ok := r.Lookup("u1"); ok {
		t.Fatal("expected entry to be gone")
	}
}

func TestUnregister_SecondCallIsNoOp(t *testing.T) {
	r := New()
	conn := &fakeConn{}
	r.Register("u1", conn)

	if !r.Unregister("u1", conn) {
		t.Fatal("first unregister should remove the entry")
	}
	if r.Unregister("u1", conn) {
		t.Fatal("second unregister should be a no-op")
	}
}

func TestSend(t *testing.T) {
	r := New()
	conn := &fakeConn{}
	r.Register("u1", conn)

	if !r.Send("u1", []byte("hello")) {
		t.Fatal("expected delivery to a registered open connection")
	}
	if conn.frameCount() != 1 {
		t.Fatalf("expected 1 frame written, got %d", conn.frameCount())
	}

	// No registration at all.
	if r.Send("nobody", []byte("hello")) {
		t.Fatal("expected send to an unregistered user to return false")
	}

	// Registered but closed.
	conn.Close()
	if r.Send("u1", []byte("hello")) {
		t.Fatal("expected send to a closed connection to return false")
	}
	if conn.frameCount() != 1 {
		t.Fatal("no frame should be written to a closed connection")
	}
}

func TestSend_WriteErrorReturnsFalse(t *testing.T) {
	r := New()
	conn := &fakeConn{failWrites: true}
	r.Register("u1", conn)

	if r.Send("u1", []byte("hello")) {
		t.Fatal("expected send to report failure when the write errors")
	}
}

// The registry is hit from many connection handlers at once; this exercises
// register/lookup/send/unregister under the race detector.
func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%8)
			conn := &fakeConn{}
			r.Register(user, conn)
			r.Send(user, []byte("ping"))
			r.Lookup(user)
			r.Unregister(user, conn)
		}(i)
	}
	wg.Wait()

	// Every user ends with at most one entry.
	if r.Count() > 8 {
		t.Fatalf("expected at most 8 entries, got %d", r.Count())
	}
}
