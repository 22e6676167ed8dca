package matching

import (
	"time"

	"github.com/google/uuid"
)

// RoomID is the opaque identifier of a pair/room. It carries no structure
// derived from the member identities; uniqueness holds even when the same
// two connections are paired repeatedly.
type RoomID string

// NewRoomID allocates a fresh room identifier.
func NewRoomID() RoomID {
	return RoomID(uuid.New().String())
}

// Room binds two matched connections. It is created exactly when the
// matcher succeeds and discarded when either member ends, disconnects,
// or re-enters search.
type Room struct {
	ID        RoomID
	MemberA   string
	MemberB   string
	CreatedAt time.Time
}

// Partner returns the other member's connection ID, or "" if connID is not
// a member.
func (r *Room) Partner(connID string) string {
	switch connID {
	case r.MemberA:
		return r.MemberB
	case r.MemberB:
		return r.MemberA
	}
	return ""
}

// Has reports whether connID is a member of this room.
func (r *Room) Has(connID string) bool {
	return connID == r.MemberA || connID == r.MemberB
}
