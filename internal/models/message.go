package models

import "encoding/json"

// SignalType represents the type of signaling message
type SignalType string

const (
	SignalTypeJoinRoom       SignalType = "join-room"
	SignalTypeUserJoined     SignalType = "user-joined"
	SignalTypeReady          SignalType = "ready"
	SignalTypeOffer          SignalType = "offer"
	SignalTypeAnswer         SignalType = "answer"
	SignalTypeCandidate      SignalType = "ice-candidate"
	SignalTypeUserLeft       SignalType = "user-left"
	SignalTypeSendMessage    SignalType = "send-message"
	SignalTypeReceiveMessage SignalType = "receive-message"
	SignalTypeError          SignalType = "error"
)

// SignalMessage is the single envelope for everything exchanged over the
// signaling connection. Payload carries offer/answer/candidate blobs and is
// relayed untouched.
type SignalMessage struct {
	Type        SignalType      `json:"type"`
	RoomID      string          `json:"roomId,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to,omitempty"`
	Name        string          `json:"name,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Message     string          `json:"message,omitempty"`
	Error       string          `json:"error,omitempty"`
}
