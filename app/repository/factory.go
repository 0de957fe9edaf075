package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository implementations.
type Repositories struct {
	Sailing      SailingRepository
	WebhookEvent WebhookEventRepository
	Batch        BatchRepository
	PriceHistory PriceHistoryRepository
	SyncLock     SyncLockRepository
}

// NewRepositories creates all repositories backed by the given database handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Sailing:      NewSailingRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Batch:        NewBatchRepository(db),
		PriceHistory: NewPriceHistoryRepository(db),
		SyncLock:     NewSyncLockRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}
