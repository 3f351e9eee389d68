package models

import "time"

// RoomMetadata stores information about a pre-created room
type RoomMetadata struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"` // Short, shareable room code (e.g., "ABCD123")
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
	MemberCount int       `json:"memberCount"`
}

// CreateRoomResponse is the response for creating a room
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}
