package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tidewave/cruisesync/app/models"
)

// syncLockRepository implements the SyncLockRepository interface
type syncLockRepository struct {
	db *gorm.DB
}

// NewSyncLockRepository creates a new sync lock repository instance
func NewSyncLockRepository(db *gorm.DB) SyncLockRepository {
	return &syncLockRepository{db: db}
}

// RecordAcquired upserts the mirror row for a line lock. One row per line;
// re-acquisition overwrites the previous holder.
func (r *syncLockRepository) RecordAcquired(lineID int, token string, acquiredAt, expiresAt time.Time) error {
	lock := models.SyncLock{
		LineID:      lineID,
		HolderToken: token,
		AcquiredAt:  acquiredAt,
		ExpiresAt:   expiresAt,
		Released:    false,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "line_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"holder_token", "acquired_at", "expires_at", "released"}),
	}).Create(&lock).Error
}

func (r *syncLockRepository) RecordReleased(lineID int, token string) error {
	return r.db.Model(&models.SyncLock{}).
		Where("line_id = ? AND holder_token = ?", lineID, token).
		Update("released", true).Error
}

func (r *syncLockRepository) Get(lineID int) (*models.SyncLock, error) {
	var lock models.SyncLock
	err := r.db.Where("line_id = ?", lineID).First(&lock).Error
	if err != nil {
		return nil, err
	}
	return &lock, nil
}
