package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BatchStatusRunning             = "running"
	BatchStatusCompleted           = "completed"
	BatchStatusCompletedWithIssues = "completed_with_issues"
	BatchStatusFailed              = "failed"
)

// SyncBatch correlates one webhook-triggered processing run across every
// entity it touched. Counters are bucketed by the error taxonomy because
// "files never existed", "connection degraded" and "data integrity problem"
// need different operational responses.
type SyncBatch struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UUID   string `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	LineID int    `gorm:"not null;index" json:"line_id"`
	Status string `gorm:"type:varchar(30);not null;default:'running';index" json:"status"`

	Attempted        int `gorm:"default:0" json:"attempted"`
	Succeeded        int `gorm:"default:0" json:"succeeded"`
	FileNotFound     int `gorm:"default:0" json:"file_not_found"`
	ConnectionErrors int `gorm:"default:0" json:"connection_errors"`
	ParseErrors      int `gorm:"default:0" json:"parse_errors"`
	ConstraintErrors int `gorm:"default:0" json:"constraint_errors"`
	PriceChanges     int `gorm:"default:0" json:"price_changes"`

	StartedAt  time.Time  `gorm:"type:timestamp;not null" json:"started_at"`
	FinishedAt *time.Time `gorm:"type:timestamp;default:null" json:"finished_at,omitempty"`
	DurationMS int64      `gorm:"default:0" json:"duration_ms"`
	ErrorMsg   string     `gorm:"type:text" json:"error_msg"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the batch UUID used in reports and history rows.
func (b *SyncBatch) BeforeCreate(tx *gorm.DB) error {
	if b.UUID == "" {
		b.UUID = uuid.New().String()
	}
	return nil
}

// Failed returns the total count of per-sailing failures in this batch.
func (b *SyncBatch) Failed() int {
	return b.FileNotFound + b.ConnectionErrors + b.ParseErrors + b.ConstraintErrors
}
