package repository

import (
	"gorm.io/gorm"

	"github.com/tidewave/cruisesync/app/models"
)

// batchRepository implements the BatchRepository interface
type batchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new batch repository instance
func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(batch *models.SyncBatch) error {
	return r.db.Create(batch).Error
}

func (r *batchRepository) Update(batch *models.SyncBatch) error {
	return r.db.Save(batch).Error
}

func (r *batchRepository) GetByUUID(uuid string) (*models.SyncBatch, error) {
	var batch models.SyncBatch
	err := r.db.Where("uuid = ?", uuid).First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) ListRecent(limit int) ([]models.SyncBatch, error) {
	var batches []models.SyncBatch
	err := r.db.Order("created_at DESC").Limit(limit).Find(&batches).Error
	return batches, err
}
