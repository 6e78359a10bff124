package ws

import (
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Activity timestamp
// ---------------------------------------------------------------------------

func TestConnection_TouchUpdatesLastActive(t *testing.T) {
	c := &Connection{}
	before := time.Now()
	c.Touch()
	after := time.Now()

	got := c.LastActive()
	if got.Before(before) || got.After(after) {
		t.Errorf("LastActive = %v, want between %v and %v", got, before, after)
	}
}

// Read workers touch the timestamp while the heartbeat reads it; every read
// must observe a value some Touch actually wrote.
func TestConnection_ConcurrentTouchAndRead(t *testing.T) {
	c := &Connection{}
	c.Touch()
	start := c.LastActive()

	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					c.Touch()
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		got := c.LastActive()
		if got.Before(start) {
			t.Fatalf("LastActive went backwards: %v < %v", got, start)
		}
	}

	close(done)
	wg.Wait()
}
