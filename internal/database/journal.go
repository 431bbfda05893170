package database

import (
	"fmt"

	"gorm.io/gorm"

	"trading-terminal-go/internal/models"
)

// Journal records orders placed from this terminal.
type Journal struct {
	db *gorm.DB
}

// NewJournal creates a Journal backed by db.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Record stores a receipt.
func (j *Journal) Record(receipt *models.OrderReceipt) error {
	if err := j.db.Create(receipt).Error; err != nil {
		return fmt.Errorf("failed to record order receipt: %w", err)
	}
	return nil
}

// Recent returns up to limit receipts, newest first.
func (j *Journal) Recent(limit int) ([]models.OrderReceipt, error) {
	var receipts []models.OrderReceipt
	// Order by most recent first
	if err := j.db.Order("placed_at desc").Limit(limit).Find(&receipts).Error; err != nil {
		return nil, fmt.Errorf("failed to read order journal: %w", err)
	}
	return receipts, nil
}
