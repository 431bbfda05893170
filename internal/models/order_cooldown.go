package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderCooldown is a rate-limit deadline for one order side, kept so the
// cooldown outlives the terminal invocation that hit the limit.
type OrderCooldown struct {
	gorm.Model
	BaseURL string `gorm:"uniqueIndex:idx_cooldown_side;not null"`
	Side    string `gorm:"uniqueIndex:idx_cooldown_side;not null"`
	Until   time.Time
}
