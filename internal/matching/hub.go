package matching

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/driftchat/drift/internal/metrics"
	"github.com/driftchat/drift/internal/profile"
	"github.com/driftchat/drift/internal/transcript"
)

// Status is the lifecycle state of a connection.
type Status int

const (
	StatusIdle Status = iota
	StatusSearching
	StatusPaired
)

// Termination reasons carried in partner_left notifications.
const (
	ReasonEnded        = "ended"        // partner ended the chat explicitly
	ReasonDisconnected = "disconnected" // partner's transport dropped
	ReasonRequeued     = "requeued"     // partner re-entered search
)

// Notifier delivers outbound events to a single connection. Implementations
// must tolerate unknown connection IDs: the target may have just gone away.
type Notifier interface {
	PartnerFound(connID string, roomID RoomID, peer profile.Profile)
	Message(connID string, text string, ts int64)
	Typing(connID string, isTyping bool)
	PartnerLeft(connID string, reason string)
	RoomClosed(connID string)
	QueueStatus(connID string, size int)
	Banned(connID string, reason string, until time.Time)
}

// BanRecord describes a live ban returned by the admission gate.
type BanRecord struct {
	Reason string
	Until  time.Time
}

// BanChecker is the moderation gate consulted before a connection is
// admitted to search. A nil record means not banned.
type BanChecker interface {
	Check(ctx context.Context, identity, addr string) (*BanRecord, error)
}

// Report is what the hub forwards to the external report sink when a user
// reports their partner.
type Report struct {
	ReporterIdentity string
	ReportedIdentity string
	Reason           string
	RoomID           RoomID
	Recent           []transcript.Message
}

// Sink receives the write-only persistence calls the hub makes at the
// moderation boundary: transcript lifecycle and report filing. Failures are
// the implementation's to log and swallow; they must never block matching.
type Sink interface {
	TranscriptOpen(roomID RoomID, memberA, memberB string)
	TranscriptAppend(roomID RoomID, from, text string, ts int64)
	TranscriptClose(roomID RoomID)
	FileReport(r Report)
}

// connState is the hub-side state of one connection.
type connState struct {
	id       string
	addr     string
	identity string // client fingerprint, may be empty
	profile  profile.Profile
	status   Status
	roomID   RoomID
}

// Hub owns the waiting registry, the room set, and per-connection lifecycle
// state. One mutex guards all of it, so the matcher's scan-and-remove plus
// room creation is observed as a single transition by concurrent events.
// Notifications and sink calls happen after the lock is released.
//
// Invariants: a connection is never both waiting and paired, holds at most
// one waiting entry, and belongs to at most one room.
type Hub struct {
	mu       sync.Mutex
	conns    map[string]*connState
	registry *Registry
	rooms    map[RoomID]*Room

	notifier Notifier
	bans     BanChecker
	sink     Sink
	recent   *transcript.Buffer

	adultOnly bool
}

// NewHub creates a hub with the given collaborators. adultOnly enables
// [18,99] age clamping during profile normalization.
func NewHub(notifier Notifier, bans BanChecker, sink Sink, adultOnly bool) *Hub {
	return &Hub{
		conns:     make(map[string]*connState),
		registry:  NewRegistry(),
		rooms:     make(map[RoomID]*Room),
		notifier:  notifier,
		bans:      bans,
		sink:      sink,
		recent:    transcript.NewBuffer(),
		adultOnly: adultOnly,
	}
}

// Connect registers a new connection in Idle state.
func (h *Hub) Connect(connID, addr string) {
	h.mu.Lock()
	h.conns[connID] = &connState{id: connID, addr: addr}
	h.mu.Unlock()
}

// SetIdentity associates a client fingerprint with the connection. The
// fingerprint is the ban/report identity; until one is set the connection
// ID stands in for it.
func (h *Hub) SetIdentity(connID, fingerprint string) {
	h.mu.Lock()
	if st, ok := h.conns[connID]; ok {
		st.identity = fingerprint
	}
	h.mu.Unlock()
}

// SetProfile normalizes and stores the connection's profile, overwriting
// any previous one, and returns the normalized result. A waiting entry's
// snapshot is not touched; the new profile applies from the next search.
func (h *Hub) SetProfile(connID string, raw profile.Profile) profile.Profile {
	p := profile.NormalizeProfile(raw, h.adultOnly)
	h.mu.Lock()
	if st, ok := h.conns[connID]; ok {
		st.profile = p
	}
	h.mu.Unlock()
	return p
}

// Search runs the admission gate and then the matcher. It returns false
// when the connection was refused by a live ban (the caller should close
// it); in every other case it returns true, having either paired the
// connection or enqueued it at the registry tail.
func (h *Hub) Search(ctx context.Context, connID string, raw profile.FilterSpec) bool {
	h.mu.Lock()
	st, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return true
	}
	identity, addr := identityOf(st), st.addr
	h.mu.Unlock()

	// Admission gate. Runs before the connection becomes visible to the
	// matcher. On gate errors admission fails open: a moderation outage
	// must not stop matching.
	if rec, err := h.bans.Check(ctx, identity, addr); err != nil {
		log.Printf("[hub] ban check conn=%s: %v (failing open)", connID, err)
	} else if rec != nil {
		h.notifier.Banned(connID, rec.Reason, rec.Until)
		log.Printf("[hub] search refused conn=%s reason=%s", connID, rec.Reason)
		return false
	}

	filter := profile.NormalizeFilter(raw)

	h.mu.Lock()
	st, ok = h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return true
	}

	// Searching again implicitly abandons the current partner.
	cl := h.closeRoomLocked(st, ReasonRequeued)

	// Replace-in-place: a re-issued search supersedes the old entry.
	h.registry.Remove(connID)

	entry := h.registry.FindCompatible(st.profile, filter, connID)
	if entry == nil {
		h.registry.Add(&WaitingEntry{
			ConnID:     connID,
			Profile:    st.profile,
			Filter:     filter,
			EnqueuedAt: time.Now(),
		})
		st.status = StatusSearching
		size := h.registry.Len()
		metrics.QueueSize.Set(float64(size))
		h.mu.Unlock()

		h.emitClosed(cl)
		h.notifier.QueueStatus(connID, size)
		return true
	}

	// First compatible candidate wins. Removing both parties and creating
	// the room under the same lock makes the pairing one atomic transition.
	h.registry.Remove(entry.ConnID)
	room := &Room{ID: NewRoomID(), MemberA: entry.ConnID, MemberB: connID, CreatedAt: time.Now()}
	h.rooms[room.ID] = room
	st.status = StatusPaired
	st.roomID = room.ID
	peerIdentity := entry.ConnID
	if ps, ok := h.conns[entry.ConnID]; ok {
		ps.status = StatusPaired
		ps.roomID = room.ID
		peerIdentity = identityOf(ps)
	}
	myProfile := st.profile
	metrics.QueueSize.Set(float64(h.registry.Len()))
	metrics.OpenRooms.Inc()
	metrics.MatchWait.Observe(time.Since(entry.EnqueuedAt).Seconds())
	h.mu.Unlock()

	h.emitClosed(cl)
	h.notifier.PartnerFound(connID, room.ID, entry.Profile)
	h.notifier.PartnerFound(entry.ConnID, room.ID, myProfile)
	h.sink.TranscriptOpen(room.ID, identity, peerIdentity)
	log.Printf("[hub] paired a=%s b=%s room=%s", entry.ConnID, connID, room.ID)
	return true
}

// CancelSearch removes the connection's waiting entry, if any.
func (h *Hub) CancelSearch(connID string) {
	h.mu.Lock()
	removed := h.registry.Remove(connID)
	if st, ok := h.conns[connID]; ok && st.status == StatusSearching {
		st.status = StatusIdle
	}
	size := h.registry.Len()
	h.mu.Unlock()

	if removed {
		metrics.QueueSize.Set(float64(size))
	}
	h.notifier.QueueStatus(connID, size)
}

// Relay forwards a chat message to the connection's partner with a
// server-assigned timestamp and appends it to the transcript. If the
// connection has no active partner this is a silent no-op: the partner
// may have just disconnected.
func (h *Hub) Relay(connID, text string) {
	h.mu.Lock()
	st, ok := h.conns[connID]
	if !ok || st.status != StatusPaired {
		h.mu.Unlock()
		return
	}
	room := h.rooms[st.roomID]
	if room == nil {
		h.mu.Unlock()
		return
	}
	partnerID := room.Partner(connID)
	roomID := room.ID
	from := identityOf(st)
	h.mu.Unlock()

	ts := time.Now().UnixMilli()
	h.recent.Add(string(roomID), transcript.Message{From: from, Text: text, Ts: ts})
	h.notifier.Message(partnerID, text, ts)
	h.sink.TranscriptAppend(roomID, from, text, ts)
	metrics.MessagesRelayed.Inc()
}

// Typing forwards a typing signal to the partner. Same silent no-op
// semantics as Relay; typing signals are not recorded.
func (h *Hub) Typing(connID string, isTyping bool) {
	h.mu.Lock()
	st, ok := h.conns[connID]
	if !ok || st.status != StatusPaired {
		h.mu.Unlock()
		return
	}
	room := h.rooms[st.roomID]
	if room == nil {
		h.mu.Unlock()
		return
	}
	partnerID := room.Partner(connID)
	h.mu.Unlock()

	h.notifier.Typing(partnerID, isTyping)
}

// ReportPartner files a report against the connection's current partner,
// attaching the room's recent messages. No-op when unpaired.
func (h *Hub) ReportPartner(connID, reason string) {
	h.mu.Lock()
	st, ok := h.conns[connID]
	if !ok || st.status != StatusPaired {
		h.mu.Unlock()
		return
	}
	room := h.rooms[st.roomID]
	if room == nil {
		h.mu.Unlock()
		return
	}
	rep := Report{
		ReporterIdentity: identityOf(st),
		ReportedIdentity: room.Partner(connID),
		Reason:           reason,
		RoomID:           room.ID,
	}
	if ps, ok := h.conns[room.Partner(connID)]; ok {
		rep.ReportedIdentity = identityOf(ps)
	}
	h.mu.Unlock()

	rep.Recent = h.recent.Get(string(rep.RoomID))
	h.sink.FileReport(rep)
	metrics.ReportsFiled.Inc()
	log.Printf("[hub] report filed room=%s reason=%s", rep.RoomID, rep.Reason)
}

// EndChat runs the cleanup protocol for an explicit end-chat.
func (h *Hub) EndChat(connID string) {
	h.Cleanup(connID, ReasonEnded)
}

// Cleanup restores the connection, and any partner, to Idle from whatever
// state it is in: the waiting entry is removed, the partner is notified
// once with the termination reason, and the room is closed. It is
// idempotent; overlapping invocations serialize on the hub lock and the
// later ones find nothing left to do.
func (h *Hub) Cleanup(connID, reason string) {
	h.mu.Lock()
	st, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	removed := h.registry.Remove(connID)
	size := h.registry.Len()
	if st.status == StatusSearching {
		st.status = StatusIdle
	}
	cl := h.closeRoomLocked(st, reason)
	h.mu.Unlock()

	if removed {
		metrics.QueueSize.Set(float64(size))
	}
	h.emitClosed(cl)
}

// Disconnect runs the cleanup protocol for a transport loss and then
// discards the connection's state, profile included.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	st, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	removed := h.registry.Remove(connID)
	size := h.registry.Len()
	cl := h.closeRoomLocked(st, ReasonDisconnected)
	delete(h.conns, connID)
	h.mu.Unlock()

	if removed {
		metrics.QueueSize.Set(float64(size))
	}
	h.emitClosed(cl)
}

// Status returns the connection's lifecycle state.
func (h *Hub) Status(connID string) Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.conns[connID]; ok {
		return st.status
	}
	return StatusIdle
}

// Stats returns current counts for the debug endpoint.
func (h *Hub) Stats() (waiting, rooms, conns int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.Len(), len(h.rooms), len(h.conns)
}

// closedRoom carries what emitClosed needs once the lock is released.
type closedRoom struct {
	ok      bool
	roomID  RoomID
	actor   string
	partner string
	reason  string
}

// closeRoomLocked tears down the actor's room, resetting both members to
// Idle. Closing an already-closed room is a no-op; only the first caller
// gets a closedRoom to emit, which is what keeps partner notifications
// single-shot.
func (h *Hub) closeRoomLocked(st *connState, reason string) closedRoom {
	if st.status != StatusPaired {
		return closedRoom{}
	}
	roomID := st.roomID
	st.status = StatusIdle
	st.roomID = ""
	room := h.rooms[roomID]
	if room == nil {
		return closedRoom{}
	}
	delete(h.rooms, roomID)
	partnerID := room.Partner(st.id)
	if ps, ok := h.conns[partnerID]; ok {
		ps.status = StatusIdle
		ps.roomID = ""
	}
	metrics.OpenRooms.Dec()
	return closedRoom{ok: true, roomID: roomID, actor: st.id, partner: partnerID, reason: reason}
}

func (h *Hub) emitClosed(cl closedRoom) {
	if !cl.ok {
		return
	}
	h.notifier.PartnerLeft(cl.partner, cl.reason)
	h.notifier.RoomClosed(cl.partner)
	h.notifier.RoomClosed(cl.actor)
	h.recent.Remove(string(cl.roomID))
	h.sink.TranscriptClose(cl.roomID)
	log.Printf("[hub] room closed room=%s by=%s reason=%s", cl.roomID, cl.actor, cl.reason)
}

func identityOf(st *connState) string {
	if st.identity != "" {
		return st.identity
	}
	return st.id
}
