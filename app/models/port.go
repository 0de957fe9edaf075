package models

import "time"

// Port is a feed reference entity (embark/disembark and itinerary calls).
type Port struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TraveltekID int       `gorm:"uniqueIndex;not null" json:"traveltek_id"`
	Name        string    `gorm:"type:varchar(191);not null" json:"name"`
	Country     string    `gorm:"type:varchar(100)" json:"country"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Region groups sailings geographically (Caribbean, Alaska, ...).
type Region struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TraveltekID int       `gorm:"uniqueIndex;not null" json:"traveltek_id"`
	Name        string    `gorm:"type:varchar(191);not null" json:"name"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
