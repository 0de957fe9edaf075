package models

import "time"

const (
	WebhookStatusPending    = "pending"
	WebhookStatusProcessing = "processing"
	WebhookStatusCompleted  = "completed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent stores every inbound feed notification with its outcome.
// Rows are created on intake regardless of acceptance and are never deleted,
// so the table doubles as the audit trail for the sync pipeline.
type WebhookEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	LineID      int        `gorm:"not null;index" json:"line_id"`
	EventType   string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON string     `gorm:"type:longtext;not null" json:"payload_json"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Reason      string     `gorm:"type:varchar(255)" json:"reason"`
	SyncBatchID *uint      `gorm:"index" json:"sync_batch_id"`
	ReceivedAt  time.Time  `gorm:"type:timestamp;not null" json:"received_at"`
	ProcessedAt *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
