package models

import "time"

const (
	PriceChangeInsert = "insert"
	PriceChangeUpdate = "update"
	PriceChangeDelete = "delete"
)

// PriceHistoryEntry records one price matrix cell change detected during a
// sync batch. Append-only: rows are never mutated after insert; retention
// pruning is handled operationally outside this service.
type PriceHistoryEntry struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SailingID          uint      `gorm:"not null;index" json:"sailing_id"`
	SyncBatchID        uint      `gorm:"not null;index" json:"sync_batch_id"`
	RateCode           string    `gorm:"type:varchar(50);not null" json:"rate_code"`
	CabinCode          string    `gorm:"type:varchar(50);not null" json:"cabin_code"`
	OccupancyCode      string    `gorm:"type:varchar(20);not null" json:"occupancy_code"`
	ChangeType         string    `gorm:"type:varchar(10);not null;index" json:"change_type"`
	OldPriceCents      *int64    `gorm:"type:bigint" json:"old_price_cents"`
	NewPriceCents      *int64    `gorm:"type:bigint" json:"new_price_cents"`
	PriceChangeCents   int64     `gorm:"type:bigint;not null" json:"price_change_cents"`
	PriceChangePercent float64   `gorm:"type:decimal(10,4)" json:"price_change_percent"`
	Currency           string    `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	SnapshotDate       time.Time `gorm:"type:timestamp;not null" json:"snapshot_date"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
