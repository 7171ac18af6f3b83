package model

import "time"

// Room is a bed pool inside a dorm. Capacity is fixed at creation; the number of
// free beds is always derived from the people currently assigned to it.
type Room struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	DormID    int64     `gorm:"not null;uniqueIndex:idx_rooms_dorm_number" json:"dorm_id"`
	Number    int       `gorm:"not null;uniqueIndex:idx_rooms_dorm_number" json:"number"`
	Capacity  int       `gorm:"not null;default:8" json:"capacity"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	// Associations
	Dorm Dorm `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
