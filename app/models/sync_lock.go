package models

import "time"

// SyncLock mirrors the Redis per-line lock into the relational store for
// observability. Redis is the authority (multiple backend instances contend
// there); this row is written best-effort on acquire and release.
type SyncLock struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LineID      int       `gorm:"uniqueIndex;not null" json:"line_id"`
	HolderToken string    `gorm:"type:char(36);not null" json:"holder_token"`
	AcquiredAt  time.Time `gorm:"type:timestamp;not null" json:"acquired_at"`
	ExpiresAt   time.Time `gorm:"type:timestamp;not null" json:"expires_at"`
	Released    bool      `gorm:"default:false" json:"released"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
