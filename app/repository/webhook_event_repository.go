package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/tidewave/cruisesync/app/models"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(event *models.WebhookEvent) error {
	return r.db.Create(event).Error
}

func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) MarkProcessing(id uint, batchID uint) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        models.WebhookStatusProcessing,
		"sync_batch_id": batchID,
	}).Error
}

func (r *webhookEventRepository) MarkCompleted(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       models.WebhookStatusCompleted,
		"processed_at": &now,
	}).Error
}

func (r *webhookEventRepository) MarkFailed(id uint, reason string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       models.WebhookStatusFailed,
		"reason":       reason,
		"processed_at": &now,
	}).Error
}

func (r *webhookEventRepository) ListByLine(lineID int, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("line_id = ?", lineID).
		Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}
