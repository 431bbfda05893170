package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trading-terminal-go/internal/models"
)

// CooldownStore keeps order rate-limit deadlines for one backend.
type CooldownStore struct {
	db      *gorm.DB
	baseURL string
}

// NewCooldownStore returns a store scoped to baseURL.
func NewCooldownStore(db *gorm.DB, baseURL string) *CooldownStore {
	return &CooldownStore{db: db, baseURL: baseURL}
}

// LoadCooldown returns the stored deadline for side, or the zero time.
func (s *CooldownStore) LoadCooldown(side models.Side) (time.Time, error) {
	var row models.OrderCooldown
	err := s.db.Where("base_url = ? AND side = ?", s.baseURL, string(side)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load cooldown: %w", err)
	}
	return row.Until, nil
}

// SaveCooldown replaces the deadline for side.
func (s *CooldownStore) SaveCooldown(side models.Side, until time.Time) error {
	row := models.OrderCooldown{BaseURL: s.baseURL, Side: string(side)}
	if err := s.db.Where(models.OrderCooldown{BaseURL: s.baseURL, Side: string(side)}).FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("failed to save cooldown: %w", err)
	}
	row.Until = until
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save cooldown: %w", err)
	}
	return nil
}

// ClearCooldown removes the deadline for side.
func (s *CooldownStore) ClearCooldown(side models.Side) error {
	err := s.db.Unscoped().Where("base_url = ? AND side = ?", s.baseURL, string(side)).Delete(&models.OrderCooldown{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear cooldown: %w", err)
	}
	return nil
}
