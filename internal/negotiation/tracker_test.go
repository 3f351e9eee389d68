package negotiation

import (
	"encoding/json"
	"testing"
	"time"
)

func blob(s string) json.RawMessage {
	return json.RawMessage(`"` + s + `"`)
}

func TestReadyElectsPresentMemberAsInitiator(t *testing.T) {
	tr := NewTracker(0, nil)

	// Bob announces readiness; Alice was already in the room.
	initiator, peer, notify := tr.Ready("bob", "alice")
	if initiator != "alice" || peer != "bob" || !notify {
		t.Fatalf("expected alice to initiate toward bob, got %s/%s notify=%v", initiator, peer, notify)
	}

	// A repeated ready before the offer re-delivers the notification.
	if _, _, notify := tr.Ready("bob", "alice"); !notify {
		t.Fatal("duplicate ready before the offer should re-notify")
	}

	// Only one side is ever in an offering state for the pair.
	a, b := tr.States("alice", "bob")
	if a != StateOffering || b != StateIdle {
		t.Fatalf("expected offering/idle, got %s/%s", a, b)
	}
}

func TestOfferAnswerRoundTrip(t *testing.T) {
	tr := NewTracker(0, nil)
	tr.Ready("bob", "alice")

	ok, _ := tr.Offer("alice", "bob")
	if !ok {
		t.Fatal("initiator offer should be accepted")
	}
	if a, b := tr.States("alice", "bob"); a != StateAwaitingAnswer || b != StateOffered {
		t.Fatalf("expected awaiting-answer/offered, got %s/%s", a, b)
	}

	ok, _ = tr.Answer("bob", "alice")
	if !ok {
		t.Fatal("responder answer should be accepted")
	}
	if a, b := tr.States("alice", "bob"); a != StateConnected || b != StateConnected {
		t.Fatalf("expected connected/connected, got %s/%s", a, b)
	}

	// Ready after Connected must not re-trigger offer creation.
	if _, _, notify := tr.Ready("bob", "alice"); notify {
		t.Fatal("ready after connected should be a no-op")
	}
}

func TestGlarePrevention(t *testing.T) {
	tr := NewTracker(0, nil)
	tr.Ready("bob", "alice")

	if ok, _ := tr.Offer("bob", "alice"); ok {
		t.Fatal("offer from the responder must be rejected")
	}
	if ok, _ := tr.Offer("alice", "bob"); !ok {
		t.Fatal("the elected initiator's offer must still pass")
	}
	if ok, _ := tr.Offer("alice", "bob"); ok {
		t.Fatal("duplicate offer must be rejected")
	}
	// Rejection leaves the state intact.
	if a, b := tr.States("alice", "bob"); a != StateAwaitingAnswer || b != StateOffered {
		t.Fatalf("state corrupted by rejected offers: %s/%s", a, b)
	}
}

func TestOfferWithoutElectionClaimsInitiator(t *testing.T) {
	tr := NewTracker(0, nil)

	if ok, _ := tr.Offer("carol", "dave"); !ok {
		t.Fatal("first offer for an unelected pair should be accepted")
	}
	if ok, _ := tr.Offer("dave", "carol"); ok {
		t.Fatal("counter-offer is glare and must be rejected")
	}
}

func TestAnswerWithoutPendingOffer(t *testing.T) {
	tr := NewTracker(0, nil)
	tr.Ready("bob", "alice")

	if ok, _ := tr.Answer("bob", "alice"); ok {
		t.Fatal("answer before any offer must be rejected")
	}

	tr.Offer("alice", "bob")
	if ok, _ := tr.Answer("alice", "bob"); ok {
		t.Fatal("answer from the initiator must be rejected")
	}
	if ok, _ := tr.Answer("bob", "alice"); !ok {
		t.Fatal("legitimate answer should pass")
	}
	if ok, _ := tr.Answer("bob", "alice"); ok {
		t.Fatal("repeated answer must be rejected")
	}
}

func TestCandidatesQueuedUntilDescription(t *testing.T) {
	tr := NewTracker(0, nil)
	tr.Ready("bob", "alice")

	// Bob has no description yet: candidates toward him are held.
	if tr.Candidate("alice", "bob", blob("c1")) {
		t.Fatal("candidate before the offer must be deferred")
	}
	if tr.Candidate("alice", "bob", blob("c2")) {
		t.Fatal("candidate before the offer must be deferred")
	}

	ok, flush := tr.Offer("alice", "bob")
	if !ok {
		t.Fatal("offer should be accepted")
	}
	if len(flush) != 2 || string(flush[0]) != `"c1"` || string(flush[1]) != `"c2"` {
		t.Fatalf("queued candidates must flush in receipt order, got %v", flush)
	}

	// With the offer delivered, bob receives candidates immediately.
	if !tr.Candidate("alice", "bob", blob("c3")) {
		t.Fatal("candidate after the offer should deliver")
	}

	// Alice (initiator) has no remote description until the answer.
	if tr.Candidate("bob", "alice", blob("r1")) {
		t.Fatal("candidate toward the initiator must wait for the answer")
	}
	ok, flush = tr.Answer("bob", "alice")
	if !ok {
		t.Fatal("answer should be accepted")
	}
	if len(flush) != 1 || string(flush[0]) != `"r1"` {
		t.Fatalf("initiator-bound candidates must flush after the answer, got %v", flush)
	}
	if !tr.Candidate("bob", "alice", blob("r2")) {
		t.Fatal("candidate after connected should deliver")
	}
}

func TestDropClosesAllLinks(t *testing.T) {
	tr := NewTracker(0, nil)
	tr.Ready("bob", "alice")
	tr.Ready("carol", "alice")

	peers := tr.Drop("alice")
	if len(peers) != 2 {
		t.Fatalf("expected two closed links, got %v", peers)
	}
	if a, b := tr.States("alice", "bob"); a != StateClosed || b != StateClosed {
		t.Fatalf("expected closed/closed, got %s/%s", a, b)
	}
	if a, b := tr.States("alice", "carol"); a != StateClosed || b != StateClosed {
		t.Fatalf("expected closed/closed, got %s/%s", a, b)
	}
}

func TestDeadlineClosesStalledNegotiation(t *testing.T) {
	expired := make(chan [2]string, 1)
	tr := NewTracker(20*time.Millisecond, func(a, b string) {
		expired <- [2]string{a, b}
	})
	tr.Ready("bob", "alice")
	tr.Offer("alice", "bob")
	// Bob never answers.

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("stalled negotiation was never expired")
	}
	if a, b := tr.States("alice", "bob"); a != StateClosed || b != StateClosed {
		t.Fatalf("expected closed/closed after expiry, got %s/%s", a, b)
	}
}

func TestDeadlineSparesConnectedPair(t *testing.T) {
	tr := NewTracker(20*time.Millisecond, func(a, b string) {
		t.Errorf("connected pair %s/%s should not expire", a, b)
	})
	tr.Ready("bob", "alice")
	tr.Offer("alice", "bob")
	tr.Answer("bob", "alice")

	time.Sleep(60 * time.Millisecond)
	if a, b := tr.States("alice", "bob"); a != StateConnected || b != StateConnected {
		t.Fatalf("expected connected/connected, got %s/%s", a, b)
	}
}
