package matching

import (
	"fmt"
	"testing"
	"time"

	"github.com/driftchat/drift/internal/profile"
)

func openEntry(connID string) *WaitingEntry {
	return &WaitingEntry{
		ConnID:     connID,
		Profile:    profile.Profile{Gender: profile.GenderMale, Age: 25, Country: profile.Any},
		Filter:     profile.FilterSpec{Gender: profile.Any, Country: profile.Any},
		EnqueuedAt: time.Now(),
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry()

	r.Add(openEntry("a"))
	r.Add(openEntry("b"))

	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}
	if r.get("a") == nil {
		t.Error("expected entry for a")
	}
	if r.get("missing") != nil {
		t.Error("expected nil for unknown connection")
	}
}

func TestRegistry_AddReplacesExisting(t *testing.T) {
	r := NewRegistry()

	first := openEntry("a")
	first.Filter.Gender = profile.GenderFemale
	r.Add(first)
	r.Add(openEntry("b"))

	// Re-adding "a" must replace the old entry and move it to the tail.
	second := openEntry("a")
	r.Add(second)

	if r.Len() != 2 {
		t.Fatalf("expected 2 entries after replace, got %d", r.Len())
	}
	if got := r.get("a"); got != second {
		t.Error("expected the replacement entry to be stored")
	}

	// "b" is now the oldest, so it wins a first-fit scan.
	match := r.FindCompatible(openEntry("c").Profile, openEntry("c").Filter, "c")
	if match == nil || match.ConnID != "b" {
		t.Errorf("expected b to be scanned first after a was re-added, got %+v", match)
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()

	r.Add(openEntry("a"))
	r.Add(openEntry("b"))
	r.Add(openEntry("c"))

	if !r.Remove("b") {
		t.Fatal("expected Remove to report success")
	}
	if r.Remove("b") {
		t.Error("second Remove should report false")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries after removal, got %d", r.Len())
	}

	// Remaining order must be preserved: a before c.
	match := r.FindCompatible(openEntry("x").Profile, openEntry("x").Filter, "x")
	if match == nil || match.ConnID != "a" {
		t.Errorf("expected a as oldest remaining entry, got %+v", match)
	}
}

func TestFindCompatible_FirstFitOrder(t *testing.T) {
	r := NewRegistry()

	// All three are compatible with the searcher; the oldest wins.
	for _, id := range []string{"old", "mid", "new"} {
		r.Add(openEntry(id))
	}

	match := r.FindCompatible(openEntry("searcher").Profile, openEntry("searcher").Filter, "searcher")
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ConnID != "old" {
		t.Errorf("expected first-fit to pick the oldest entry, got %s", match.ConnID)
	}
}

func TestFindCompatible_SkipsIncompatible(t *testing.T) {
	r := NewRegistry()

	// "picky" only accepts females; the male searcher cannot satisfy it.
	picky := openEntry("picky")
	picky.Filter.Gender = profile.GenderFemale
	r.Add(picky)
	r.Add(openEntry("open"))

	match := r.FindCompatible(
		profile.Profile{Gender: profile.GenderMale, Age: 25, Country: profile.Any},
		profile.FilterSpec{Gender: profile.Any, Country: profile.Any},
		"searcher",
	)
	if match == nil {
		t.Fatal("expected a match")
	}
	if match.ConnID != "open" {
		t.Errorf("expected the incompatible head to be skipped, got %s", match.ConnID)
	}
}

func TestFindCompatible_SkipsSelf(t *testing.T) {
	r := NewRegistry()
	r.Add(openEntry("a"))

	if match := r.FindCompatible(openEntry("a").Profile, openEntry("a").Filter, "a"); match != nil {
		t.Errorf("expected no match when only self is waiting, got %+v", match)
	}
}

func TestFindCompatible_NoCandidates(t *testing.T) {
	r := NewRegistry()

	if match := r.FindCompatible(openEntry("a").Profile, openEntry("a").Filter, "a"); match != nil {
		t.Errorf("expected nil on empty registry, got %+v", match)
	}

	// Fill with incompatible entries only.
	for i := 0; i < 3; i++ {
		e := openEntry(fmt.Sprintf("user-%d", i))
		e.Filter.Gender = profile.GenderFemale
		r.Add(e)
	}
	match := r.FindCompatible(
		profile.Profile{Gender: profile.GenderMale, Age: 25, Country: profile.Any},
		profile.FilterSpec{Gender: profile.Any, Country: profile.Any},
		"searcher",
	)
	if match != nil {
		t.Errorf("expected nil when nobody is compatible, got %+v", match)
	}
}
