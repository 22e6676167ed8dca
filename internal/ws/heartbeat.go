package ws

import (
	"log"
	"time"

	"github.com/gobwas/ws"
)

// startHeartbeat pings every connection on the configured interval and
// evicts those that stay silent past the eviction deadline. Runs until the
// server's done channel closes.
func (s *Server) startHeartbeat() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepConnections(time.Now())
		}
	}
}

// sweepConnections removes connections with no successful read within the
// eviction deadline and sends a protocol-level ping (opcode 0x9) to the
// rest. Browsers answer the ping automatically with a pong, which counts
// as activity on the next read.
func (s *Server) sweepConnections(now time.Time) {
	deadline := s.config.HeartbeatInterval + s.config.HeartbeatTimeout

	for _, c := range s.conns.All() {
		if stale(c, now, deadline) {
			log.Printf("ws: heartbeat timeout conn=%s idle=%s",
				c.ID, now.Sub(c.LastPing).Round(time.Second))
			s.RemoveConnection(c)
			continue
		}

		if err := c.WritePing(); err != nil {
			log.Printf("ws: heartbeat ping failed conn=%s: %v", c.ID, err)
			s.RemoveConnection(c)
		}
	}
}

// stale reports whether the connection has gone longer than deadline
// without a successful read.
func stale(c *Connection, now time.Time, deadline time.Duration) bool {
	return now.Sub(c.LastPing) > deadline
}

// WritePing sends a WebSocket ping frame. The write mutex keeps it from
// interleaving with application frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}
