package rooms

import (
	"sync"

	"github.com/peerline/signaling/internal/models"
)

// Session is one client's signaling connection. The websocket handler wraps
// a real connection in this; tests use in-process implementations.
type Session interface {
	ID() string
	Deliver(msg models.SignalMessage)
	Close()
}

// Participant is a member of a room.
type Participant struct {
	ID          string
	DisplayName string
	RoomID      string
	Session     Session
}

// Room groups participants eligible to signal each other.
type Room struct {
	ID      string
	Members map[string]*Participant
}

// Registry tracks room membership. Rooms are created on first join and
// discarded when the last member leaves. State lives only in this process.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]*Room
	participants map[string]*Participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:        make(map[string]*Room),
		participants: make(map[string]*Participant),
	}
}

// Join registers a session under roomID, creating the room if absent. A
// participant belongs to at most one room: joining again moves it.
func (r *Registry) Join(sess Session, roomID, displayName string) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.participants[sess.ID()]; ok {
		r.removeLocked(existing)
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, Members: make(map[string]*Participant)}
		r.rooms[roomID] = room
	}

	p := &Participant{
		ID:          sess.ID(),
		DisplayName: displayName,
		RoomID:      roomID,
		Session:     sess,
	}
	room.Members[p.ID] = p
	r.participants[p.ID] = p
	return p
}

// Leave removes the participant and returns it together with the members
// left behind, so the caller can notify them. Returns nil if unknown.
func (r *Registry) Leave(participantID string) (*Participant, []*Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		return nil, nil
	}
	r.removeLocked(p)

	var remaining []*Participant
	if room, ok := r.rooms[p.RoomID]; ok {
		for _, m := range room.Members {
			remaining = append(remaining, m)
		}
	}
	return p, remaining
}

func (r *Registry) removeLocked(p *Participant) {
	delete(r.participants, p.ID)
	room, ok := r.rooms[p.RoomID]
	if !ok {
		return
	}
	delete(room.Members, p.ID)
	if len(room.Members) == 0 {
		delete(r.rooms, room.ID)
	}
}

// Get returns the participant by id, or nil.
func (r *Registry) Get(participantID string) *Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participants[participantID]
}

// ListOthers returns the current members of roomID except excludingID.
func (r *Registry) ListOthers(roomID, excludingID string) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	others := make([]*Participant, 0, len(room.Members))
	for id, m := range room.Members {
		if id != excludingID {
			others = append(others, m)
		}
	}
	return others
}

// SameRoom reports whether both participants are currently members of the
// same room.
func (r *Registry) SameRoom(aID, bID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, okA := r.participants[aID]
	b, okB := r.participants[bID]
	return okA && okB && a.RoomID == b.RoomID
}
