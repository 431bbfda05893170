package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderReceipt records an order successfully placed from this terminal.
type OrderReceipt struct {
	gorm.Model
	RemoteID  string    `json:"remote_id"`
	Symbol    string    `json:"symbol" gorm:"index"`
	Side      string    `json:"side"` // "BUY" or "SELL"
	Quantity  string    `json:"quantity"`
	Price     string    `json:"price"`
	RequestID string    `json:"request_id"`
	PlacedAt  time.Time `json:"placed_at"`
}
