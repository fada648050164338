package model

import "time"

// Lot represents a monitored parking lot.
type Lot struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	TotalSpots int       `gorm:"not null;default:0" json:"total_spots"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}
