package model

import "time"

// Assignment is the audit row written for every placement made by a pass.
type Assignment struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	PassID     string    `gorm:"size:36;not null;index" json:"pass_id"`
	PersonID   int64     `gorm:"not null;index" json:"person_id"`
	RoomID     int64     `gorm:"not null" json:"room_id"`
	AssignedAt time.Time `gorm:"not null" json:"assigned_at"`
}
