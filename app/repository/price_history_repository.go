package repository

import (
	"gorm.io/gorm"

	"github.com/tidewave/cruisesync/app/models"
)

// priceHistoryRepository implements the PriceHistoryRepository interface
type priceHistoryRepository struct {
	db *gorm.DB
}

// NewPriceHistoryRepository creates a new price history repository instance
func NewPriceHistoryRepository(db *gorm.DB) PriceHistoryRepository {
	return &priceHistoryRepository{db: db}
}

// BulkInsert appends history rows in chunks. History is append-only; there
// is no update path.
func (r *priceHistoryRepository) BulkInsert(entries []models.PriceHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.CreateInBatches(entries, 200).Error
}

func (r *priceHistoryRepository) ListBySailing(sailingID uint, limit int) ([]models.PriceHistoryEntry, error) {
	var entries []models.PriceHistoryEntry
	err := r.db.Where("sailing_id = ?", sailingID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func (r *priceHistoryRepository) ListByBatch(batchID uint) ([]models.PriceHistoryEntry, error) {
	var entries []models.PriceHistoryEntry
	err := r.db.Where("sync_batch_id = ?", batchID).Find(&entries).Error
	return entries, err
}
