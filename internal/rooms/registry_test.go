package rooms

import (
	"testing"

	"github.com/peerline/signaling/internal/models"
)

type fakeSession struct {
	id    string
	inbox []models.SignalMessage
}

func (s *fakeSession) ID() string                       { return s.id }
func (s *fakeSession) Deliver(msg models.SignalMessage) { s.inbox = append(s.inbox, msg) }
func (s *fakeSession) Close()                           {}

func TestJoinAndListOthers(t *testing.T) {
	reg := NewRegistry()

	alice := reg.Join(&fakeSession{id: "a"}, "room1", "Alice")
	if got := reg.ListOthers("room1", alice.ID); len(got) != 0 {
		t.Fatalf("first joiner should see no others, got %d", len(got))
	}

	bob := reg.Join(&fakeSession{id: "b"}, "room1", "Bob")
	others := reg.ListOthers("room1", bob.ID)
	if len(others) != 1 || others[0].ID != "a" {
		t.Fatalf("bob should see exactly alice, got %+v", others)
	}
	if !reg.SameRoom("a", "b") {
		t.Fatal("alice and bob should share a room")
	}
}

func TestLeaveReportsRemainingAndCleansUp(t *testing.T) {
	reg := NewRegistry()
	reg.Join(&fakeSession{id: "a"}, "room1", "Alice")
	reg.Join(&fakeSession{id: "b"}, "room1", "Bob")

	p, remaining := reg.Leave("b")
	if p == nil || p.DisplayName != "Bob" {
		t.Fatalf("leave should return the departing participant, got %+v", p)
	}
	if len(remaining) != 1 || remaining[0].ID != "a" {
		t.Fatalf("alice should remain, got %+v", remaining)
	}
	if reg.Get("b") != nil {
		t.Fatal("bob should be gone after leave")
	}

	if p, remaining = reg.Leave("a"); len(remaining) != 0 {
		t.Fatalf("room should be empty, got %+v", remaining)
	}
	// Room is discarded once empty; a fresh join sees nobody.
	carol := reg.Join(&fakeSession{id: "c"}, "room1", "Carol")
	if got := reg.ListOthers("room1", carol.ID); len(got) != 0 {
		t.Fatalf("recreated room should be empty, got %d members", len(got))
	}
}

func TestLeaveUnknownParticipant(t *testing.T) {
	reg := NewRegistry()
	if p, remaining := reg.Leave("nope"); p != nil || remaining != nil {
		t.Fatalf("leaving an unknown participant should be a no-op, got %+v %+v", p, remaining)
	}
}

func TestRejoinMovesParticipant(t *testing.T) {
	reg := NewRegistry()
	reg.Join(&fakeSession{id: "a"}, "room1", "Alice")
	reg.Join(&fakeSession{id: "b"}, "room1", "Bob")

	// A participant belongs to at most one room at a time.
	reg.Join(&fakeSession{id: "a"}, "room2", "Alice")

	if reg.SameRoom("a", "b") {
		t.Fatal("alice should have left room1")
	}
	if got := reg.ListOthers("room1", "b"); len(got) != 0 {
		t.Fatalf("room1 should only hold bob, got %d others", len(got))
	}
	if p := reg.Get("a"); p == nil || p.RoomID != "room2" {
		t.Fatalf("alice should be in room2, got %+v", p)
	}
}
