package model

import "time"

// PersonState is the lifecycle state of a person record.
type PersonState string

const (
	StateWaiting  PersonState = "waiting"
	StateAssigned PersonState = "assigned"
)

// Person is a soldier waiting for, or holding, a bed.
// RoomID is set if and only if State is StateAssigned.
type Person struct {
	ID         int64       `gorm:"primaryKey" json:"id"`
	PersonalID string      `gorm:"uniqueIndex;size:7;not null" json:"personal_id"`
	FirstName  string      `gorm:"size:128;not null;index" json:"first_name"`
	LastName   string      `gorm:"size:128;not null;index" json:"last_name"`
	Gender     string      `gorm:"size:32;index" json:"gender"`
	LivesAt    string      `gorm:"size:256" json:"lives_at"`
	Distance   int         `gorm:"not null;default:0;index" json:"distance"`
	State      PersonState `gorm:"size:16;not null;default:waiting;index" json:"state"`
	AssignedAt *time.Time  `json:"assigned_at,omitempty"`
	RoomID     *int64      `gorm:"index" json:"room_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`

	// Associations
	Room *Room `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return p.FirstName + " " + p.LastName
}
