package repository

import (
	"github.com/tradepipe/internal/models"
	"gorm.io/gorm"
)

// SnapshotRepository handles order-book snapshot data access
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create persists one snapshot
func (r *SnapshotRepository) Create(snapshot *models.OrderBookSnapshot) error {
	return r.db.Create(snapshot).Error
}

// GetLatest retrieves the most recent snapshots for a market, newest first
func (r *SnapshotRepository) GetLatest(exchange, symbol string, limit int) ([]models.OrderBookSnapshot, error) {
	var snapshots []models.OrderBookSnapshot
	result := r.db.Where("exchange = ? AND symbol = ?", exchange, symbol).
		Order("captured_at DESC").
		Limit(limit).
		Find(&snapshots)
	return snapshots, result.Error
}
