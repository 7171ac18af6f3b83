package store

import (
	"time"

	"dorm-assignment-backend/internal/model"
)

// RoomSlot is one rung of the room ladder: a room with its live occupancy.
type RoomSlot struct {
	RoomID   int64  `json:"room_id"`
	DormID   int64  `json:"dorm_id"`
	DormName string `json:"dorm_name"`
	Number   int    `json:"number"`
	Capacity int    `json:"capacity"`
	Occupied int    `json:"occupied"`
}

// Remaining returns the number of free beds, never below zero.
func (r RoomSlot) Remaining() int {
	if free := r.Capacity - r.Occupied; free > 0 {
		return free
	}
	return 0
}

// Placement assigns one person to one room.
type Placement struct {
	PersonID int64 `json:"person_id"`
	RoomID   int64 `json:"room_id"`
}

// DormSummary aggregates the occupancy of a dorm's rooms.
type DormSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Rooms     int       `json:"rooms"`
	Capacity  int       `json:"capacity"`
	Occupied  int       `json:"occupied"`
	Remaining int       `json:"remaining"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPerson carries the fields needed to register a person. The personal id
// must already have passed the boundary check.
type NewPerson struct {
	PersonalID string
	FirstName  string
	LastName   string
	Gender     string
	LivesAt    string
	Distance   int
}

// PersonFilter narrows ListPeople. A zero State lists everyone.
type PersonFilter struct {
	State model.PersonState
}
