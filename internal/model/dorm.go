package model

import "time"

// Dorm represents a dormitory building. Dorms are ordered by CreatedAt, then ID,
// when building the room ladder.
type Dorm struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	RoomsCount int       `gorm:"not null;default:10" json:"rooms_count"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"-"`

	// Associations
	Rooms []Room `gorm:"foreignKey:DormID" json:"rooms,omitempty"`
}
