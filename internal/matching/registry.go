// Package matching contains the matchmaking and session-lifecycle engine:
// the waiting registry, the first-fit compatibility scan, pair/room
// formation, the message relay, and the cleanup protocol that restores
// consistent state on disconnects and re-searches.
package matching

import (
	"time"

	"github.com/driftchat/drift/internal/profile"
)

// WaitingEntry is a queued, unpaired search request together with the
// profile and filter snapshot taken when it was enqueued.
type WaitingEntry struct {
	ConnID     string
	Profile    profile.Profile
	Filter     profile.FilterSpec
	EnqueuedAt time.Time
}

// Registry is the ordered collection of connections currently searching.
// Insertion order is its only ordering and determines scan order during
// matching. It is not goroutine-safe; the owning Hub serializes access.
//
// Invariant: at most one entry per connection ID.
type Registry struct {
	entries []*WaitingEntry
	index   map[string]*WaitingEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*WaitingEntry)}
}

// Add appends an entry at the tail. Any existing entry for the same
// connection is removed first, so re-adding replaces rather than duplicates.
func (r *Registry) Add(e *WaitingEntry) {
	r.Remove(e.ConnID)
	r.entries = append(r.entries, e)
	r.index[e.ConnID] = e
}

// Remove deletes the entry for connID, preserving the order of the rest.
// It reports whether an entry was present.
func (r *Registry) Remove(connID string) bool {
	if _, ok := r.index[connID]; !ok {
		return false
	}
	delete(r.index, connID)
	for i, e := range r.entries {
		if e.ConnID == connID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	return true
}

// get returns the entry for connID, or nil if it is not waiting.
func (r *Registry) get(connID string) *WaitingEntry {
	return r.index[connID]
}

// Len returns the number of waiting connections.
func (r *Registry) Len() int {
	return len(r.entries)
}

// FindCompatible scans in insertion order and returns the first entry that
// is mutually compatible with the given profile and filter, skipping selfID.
// First-fit is deliberate: the oldest compatible searcher wins, trading
// optimal pairing for FIFO fairness and a single O(n) pass.
func (r *Registry) FindCompatible(p profile.Profile, f profile.FilterSpec, selfID string) *WaitingEntry {
	for _, e := range r.entries {
		if e.ConnID == selfID {
			continue
		}
		if profile.MutuallyCompatible(p, f, e.Profile, e.Filter) {
			return e
		}
	}
	return nil
}
