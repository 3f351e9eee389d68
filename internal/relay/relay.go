package relay

import (
	"context"
	"encoding/json"
	"log"

	"github.com/peerline/signaling/internal/models"
	"github.com/peerline/signaling/internal/negotiation"
	"github.com/peerline/signaling/internal/presence"
	"github.com/peerline/signaling/internal/rooms"
)

// Relay routes signaling and chat messages between room members. It never
// interprets negotiation payloads; it only enforces membership, ordering and
// the per-pair negotiation protocol via the tracker.
type Relay struct {
	registry *rooms.Registry
	tracker  *negotiation.Tracker
	store    presence.Store
}

// New builds a relay over the given registry, tracker and presence mirror.
func New(registry *rooms.Registry, tracker *negotiation.Tracker, store presence.Store) *Relay {
	return &Relay{
		registry: registry,
		tracker:  tracker,
		store:    store,
	}
}

// HandleMessage processes one inbound message from a session. Malformed or
// out-of-sequence messages are dropped with a diagnostic; the session is
// never torn down for them.
func (r *Relay) HandleMessage(sess rooms.Session, msg models.SignalMessage) {
	msg.From = sess.ID()

	switch msg.Type {
	case models.SignalTypeJoinRoom:
		r.handleJoin(sess, msg)
	case models.SignalTypeReady:
		r.handleReady(sess)
	case models.SignalTypeOffer:
		r.handleOffer(msg)
	case models.SignalTypeAnswer:
		r.handleAnswer(msg)
	case models.SignalTypeCandidate:
		r.handleCandidate(msg)
	case models.SignalTypeSendMessage:
		r.handleChat(msg)
	default:
		log.Printf("Unknown message type %q from %s", msg.Type, sess.ID())
	}
}

// HandleDisconnect tears down everything owned by the session: all of its
// peer links close immediately, then the remaining members are told once
// that the participant left.
func (r *Relay) HandleDisconnect(sess rooms.Session) {
	r.leave(sess.ID())
}

// leave closes every peer link the participant holds, removes it from its
// room and notifies the members left behind. A link never outlives either
// endpoint's membership.
func (r *Relay) leave(participantID string) {
	r.tracker.Drop(participantID)

	p, remaining := r.registry.Leave(participantID)
	if p == nil {
		return
	}
	if err := r.store.RemovePeer(context.Background(), p.RoomID, p.ID); err != nil {
		log.Printf("Presence remove for %s: %v", p.ID, err)
	}
	for _, m := range remaining {
		m.Session.Deliver(models.SignalMessage{
			Type: models.SignalTypeUserLeft,
			Name: p.DisplayName,
		})
	}
	log.Printf("Peer %s (%s) left room %s", p.ID, p.DisplayName, p.RoomID)
}

func (r *Relay) handleJoin(sess rooms.Session, msg models.SignalMessage) {
	if msg.RoomID == "" {
		log.Printf("Dropping join-room from %s: missing roomId", sess.ID())
		return
	}
	// Joining again is a move: the old membership ends first, with the
	// full leave side effects.
	if r.registry.Get(sess.ID()) != nil {
		r.leave(sess.ID())
	}
	p := r.registry.Join(sess, msg.RoomID, msg.DisplayName)
	if err := r.store.AddPeer(context.Background(), p.RoomID, p.ID); err != nil {
		log.Printf("Presence add for %s: %v", p.ID, err)
	}
	log.Printf("Peer %s (%s) joined room %s", p.ID, p.DisplayName, p.RoomID)

	notice := models.SignalMessage{
		Type: models.SignalTypeUserJoined,
		From: p.ID,
		Name: p.DisplayName,
	}
	for _, m := range r.registry.ListOthers(p.RoomID, p.ID) {
		m.Session.Deliver(notice)
	}
}

// handleReady fans the readiness announcement out pairwise. For each pair
// the tracker elects exactly one initiator and only that side is notified,
// so two simultaneous ready announcements cannot produce two offers.
func (r *Relay) handleReady(sess rooms.Session) {
	p := r.registry.Get(sess.ID())
	if p == nil {
		log.Printf("Dropping ready from %s: not in a room", sess.ID())
		return
	}
	for _, other := range r.registry.ListOthers(p.RoomID, p.ID) {
		initiator, peer, notify := r.tracker.Ready(p.ID, other.ID)
		if !notify {
			continue
		}
		r.route(initiator, models.SignalMessage{
			Type: models.SignalTypeReady,
			From: peer,
		})
	}
}

func (r *Relay) handleOffer(msg models.SignalMessage) {
	if !r.validateRouted(msg) {
		return
	}
	ok, flush := r.tracker.Offer(msg.From, msg.To)
	if !ok {
		log.Printf("Rejecting offer %s -> %s: out of sequence", msg.From, msg.To)
		return
	}
	r.route(msg.To, msg)
	r.flushCandidates(msg.From, msg.To, flush)
}

func (r *Relay) handleAnswer(msg models.SignalMessage) {
	if !r.validateRouted(msg) {
		return
	}
	ok, flush := r.tracker.Answer(msg.From, msg.To)
	if !ok {
		log.Printf("Rejecting answer %s -> %s: no pending offer", msg.From, msg.To)
		return
	}
	r.route(msg.To, msg)
	r.flushCandidates(msg.From, msg.To, flush)
}

func (r *Relay) handleCandidate(msg models.SignalMessage) {
	if !r.validateRouted(msg) {
		return
	}
	if !r.tracker.Candidate(msg.From, msg.To, msg.Payload) {
		// Held until the recipient has a description to apply it against.
		return
	}
	r.route(msg.To, msg)
}

func (r *Relay) handleChat(msg models.SignalMessage) {
	p := r.registry.Get(msg.From)
	if p == nil {
		log.Printf("Dropping send-message from %s: not in a room", msg.From)
		return
	}
	if msg.Message == "" {
		log.Printf("Dropping send-message from %s: empty message", msg.From)
		return
	}
	notice := models.SignalMessage{
		Type:    models.SignalTypeReceiveMessage,
		From:    p.ID,
		Message: msg.Message,
	}
	for _, m := range r.registry.ListOthers(p.RoomID, p.ID) {
		m.Session.Deliver(notice)
	}
}

// validateRouted checks an addressed message for its required fields and
// that both ends share a room. A missing counterpart is a recoverable race
// (it may have just disconnected), so failures are logged and dropped.
func (r *Relay) validateRouted(msg models.SignalMessage) bool {
	if msg.To == "" || len(msg.Payload) == 0 {
		log.Printf("Dropping %s from %s: missing to or payload", msg.Type, msg.From)
		return false
	}
	if !r.registry.SameRoom(msg.From, msg.To) {
		log.Printf("Dropping %s from %s: %s is not in the same room", msg.Type, msg.From, msg.To)
		return false
	}
	return true
}

func (r *Relay) flushCandidates(from, to string, blobs []json.RawMessage) {
	for _, blob := range blobs {
		r.route(to, models.SignalMessage{
			Type:    models.SignalTypeCandidate,
			From:    from,
			To:      to,
			Payload: blob,
		})
	}
}

func (r *Relay) route(to string, msg models.SignalMessage) {
	target := r.registry.Get(to)
	if target == nil {
		log.Printf("Target peer %s not found, dropping %s", to, msg.Type)
		return
	}
	target.Session.Deliver(msg)
}
