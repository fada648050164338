package model

import "time"

// AllowedPlate is a plate slug admitted when access control is active.
type AllowedPlate struct {
	Plate     string    `gorm:"primaryKey;size:64" json:"plate"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
