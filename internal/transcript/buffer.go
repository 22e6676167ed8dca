// Package transcript handles chat transcripts: an in-memory buffer of each
// room's most recent messages (attached to abuse reports) and the Postgres
// store the moderation console reads from. The chat server only ever
// appends; it never reads a transcript back.
package transcript

import "sync"

// MaxBufferMessages is the number of recent messages retained per room.
const MaxBufferMessages = 5

// Message is one transcript entry.
type Message struct {
	From string `json:"from"` // sender identity (fingerprint or connection ID)
	Text string `json:"text"`
	Ts   int64  `json:"ts"` // unix milliseconds, server-assigned
}

// Buffer stores the last N messages per room in memory. It is
// goroutine-safe and uses a fixed-size ring per room.
type Buffer struct {
	mu    sync.RWMutex
	rings map[string]*ring // roomID -> ring
}

type ring struct {
	items []Message
	pos   int
	count int
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{rings: make(map[string]*ring)}
}

// Add appends a message to the room's ring, overwriting the oldest entry
// when full.
func (b *Buffer) Add(roomID string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rings[roomID]
	if !ok {
		r = &ring{items: make([]Message, MaxBufferMessages)}
		b.rings[roomID] = r
	}

	r.items[r.pos] = msg
	r.pos = (r.pos + 1) % MaxBufferMessages
	if r.count < MaxBufferMessages {
		r.count++
	}
}

// Get returns the room's recent messages oldest first. Empty slice when the
// room has no buffer.
func (b *Buffer) Get(roomID string) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.rings[roomID]
	if !ok {
		return []Message{}
	}

	out := make([]Message, r.count)
	start := (r.pos - r.count + MaxBufferMessages) % MaxBufferMessages
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(start+i)%MaxBufferMessages]
	}
	return out
}

// Remove drops the room's buffer (called when the room closes).
func (b *Buffer) Remove(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.rings, roomID)
}
