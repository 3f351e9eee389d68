package negotiation

import (
	"encoding/json"
	"sync"
	"time"
)

// State of one endpoint of a peer link.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAwaitingAnswer
	StateOffered
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAwaitingAnswer:
		return "awaiting-answer"
	case StateOffered:
		return "offered"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// pairKey identifies the unordered participant pair of a link.
type pairKey struct {
	lo, hi string
}

func keyFor(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// link is the single shared negotiation entity for one pair. It is never
// duplicated per side; both endpoints' states live here.
type link struct {
	key            pairKey
	initiator      string
	responder      string
	initiatorState State
	responderState State

	// Candidate blobs received before the recipient had a description,
	// keyed by recipient id, kept in receipt order.
	pending map[string][]json.RawMessage

	timer *time.Timer
}

func (l *link) peerOf(id string) string {
	if l.key.lo == id {
		return l.key.hi
	}
	return l.key.lo
}

// Tracker owns every active link and serializes all transitions for a pair.
type Tracker struct {
	mu       sync.Mutex
	links    map[pairKey]*link
	deadline time.Duration
	onExpire func(a, b string)
}

// NewTracker creates a tracker. deadline bounds how long a link may stay
// short of Connected before it is closed; zero disables the bound. onExpire
// is invoked (outside the tracker lock) when a deadline fires; it may be nil.
func NewTracker(deadline time.Duration, onExpire func(a, b string)) *Tracker {
	return &Tracker{
		links:    make(map[pairKey]*link),
		deadline: deadline,
		onExpire: onExpire,
	}
}

func (t *Tracker) getOrCreate(a, b string) *link {
	key := keyFor(a, b)
	l, ok := t.links[key]
	if !ok {
		l = &link{key: key, pending: make(map[string][]json.RawMessage)}
		t.links[key] = l
		if t.deadline > 0 {
			l.timer = time.AfterFunc(t.deadline, func() { t.expire(key) })
		}
	}
	return l
}

func (t *Tracker) expire(key pairKey) {
	t.mu.Lock()
	l, ok := t.links[key]
	if !ok || (l.initiatorState == StateConnected && l.responderState == StateConnected) {
		t.mu.Unlock()
		return
	}
	delete(t.links, key)
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(key.lo, key.hi)
	}
}

// Ready records that newcomer announced readiness while present was already
// in the room, and elects the initiator for the pair. The member that was
// already present initiates; only it is ever told to build an offer, so a
// pair can never produce two offers for one round. A repeated ready while
// the initiator has not offered yet re-delivers the notification (the
// announcement may have been missed); after that it is a no-op.
func (t *Tracker) Ready(newcomer, present string) (initiator, peer string, notify bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.getOrCreate(newcomer, present)
	if l.initiator == "" {
		l.initiator = present
		l.responder = newcomer
		l.initiatorState = StateOffering
	}
	notify = l.initiatorState == StateOffering
	return l.initiator, l.peerOf(l.initiator), notify
}

// Offer validates an offer from one endpoint to the other. Only the elected
// initiator may offer, exactly once. An offer for a pair with no election
// yet claims the initiator role for its sender. On success the returned
// blobs are candidates queued for the recipient, to be delivered after the
// offer, in receipt order.
func (t *Tracker) Offer(from, to string) (ok bool, flush []json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.getOrCreate(from, to)
	if l.initiator == "" {
		l.initiator = from
		l.responder = to
	}
	if from != l.initiator {
		return false, nil // glare: the responder tried to offer
	}
	if l.initiatorState > StateOffering {
		return false, nil // duplicate offer
	}
	l.initiatorState = StateAwaitingAnswer
	l.responderState = StateOffered

	flush = l.pending[to]
	delete(l.pending, to)
	return true, flush
}

// Answer validates an answer. Only the responder may answer, and only while
// an offer is pending. On success both endpoints reach Connected and the
// returned blobs are candidates queued for the initiator.
func (t *Tracker) Answer(from, to string) (ok bool, flush []json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, found := t.links[keyFor(from, to)]
	if !found || from != l.responder {
		return false, nil
	}
	if l.responderState != StateOffered {
		return false, nil // answer with no pending offer, or repeated answer
	}
	l.initiatorState = StateConnected
	l.responderState = StateConnected
	if l.timer != nil {
		l.timer.Stop()
	}

	flush = l.pending[to]
	delete(l.pending, to)
	return true, flush
}

// Candidate decides whether a candidate blob can be delivered to its
// recipient now. A candidate is applicable only once the recipient has the
// matching description: the responder needs the offer, the initiator needs
// the answer. Until then the blob is queued in receipt order, never dropped.
func (t *Tracker) Candidate(from, to string, blob json.RawMessage) (deliver bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.getOrCreate(from, to)
	switch to {
	case l.responder:
		deliver = l.responderState >= StateOffered
	case l.initiator:
		deliver = l.initiatorState == StateConnected
	}
	if !deliver {
		l.pending[to] = append(l.pending[to], blob)
	}
	return deliver
}

// Drop closes every link involving the participant, releasing timers and
// queued candidates. It returns the counterpart ids of the closed links.
func (t *Tracker) Drop(participantID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var peers []string
	for key, l := range t.links {
		if key.lo != participantID && key.hi != participantID {
			continue
		}
		if l.timer != nil {
			l.timer.Stop()
		}
		delete(t.links, key)
		peers = append(peers, l.peerOf(participantID))
	}
	return peers
}

// States reports both endpoints' states for a pair, ordered (a, b). A pair
// with no live link is Closed.
func (t *Tracker) States(a, b string) (State, State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.links[keyFor(a, b)]
	if !ok {
		return StateClosed, StateClosed
	}
	stateOf := func(id string) State {
		if id == l.initiator {
			return l.initiatorState
		}
		if id == l.responder {
			return l.responderState
		}
		return StateIdle
	}
	return stateOf(a), stateOf(b)
}
