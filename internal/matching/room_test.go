package matching

import "testing"

func TestRoomPartner(t *testing.T) {
	r := &Room{ID: NewRoomID(), MemberA: "a", MemberB: "b"}

	if got := r.Partner("a"); got != "b" {
		t.Errorf("Partner(a) = %q, want b", got)
	}
	if got := r.Partner("b"); got != "a" {
		t.Errorf("Partner(b) = %q, want a", got)
	}
	if got := r.Partner("stranger"); got != "" {
		t.Errorf("Partner(stranger) = %q, want empty", got)
	}
}

func TestRoomHas(t *testing.T) {
	r := &Room{ID: NewRoomID(), MemberA: "a", MemberB: "b"}

	if !r.Has("a") || !r.Has("b") {
		t.Error("expected both members present")
	}
	if r.Has("stranger") {
		t.Error("expected stranger absent")
	}
}

func TestNewRoomID_Unique(t *testing.T) {
	seen := make(map[RoomID]bool)
	for i := 0; i < 1000; i++ {
		id := NewRoomID()
		if seen[id] {
			t.Fatalf("duplicate room ID %s", id)
		}
		seen[id] = true
	}
}
