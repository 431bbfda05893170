package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts any casing of BUY or SELL.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown order side %q", s)
}

// OrderStatus is the backend-owned lifecycle state of an order.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Order is a read-only snapshot of an order held by the backend.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// IsOpen reports whether the order can still be cancelled or force-executed.
func (o Order) IsOpen() bool {
	return o.Status == StatusOpen
}

// Total is quantity × price.
func (o Order) Total() decimal.Decimal {
	return o.Quantity.Mul(o.Price)
}

// orderWire accepts the field aliases the backend has used over time.
type orderWire struct {
	MongoID     any              `json:"_id"`
	ID          any              `json:"id"`
	StockSymbol string           `json:"stockSymbol"`
	Symbol      string           `json:"symbol"`
	Type        string           `json:"type"`
	Side        string           `json:"side"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	Status      string           `json:"status"`
	CreatedAt   *time.Time       `json:"createdAt"`
	Date        *time.Time       `json:"date"`
}

// UnmarshalJSON decodes an order, preferring `_id`, `stockSymbol`, `type` and
// `createdAt` over their fallbacks. A missing status means OPEN.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w orderWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*o = Order{
		ID:       firstNonEmpty(idString(w.MongoID), idString(w.ID)),
		Symbol:   strings.ToUpper(firstNonEmpty(w.StockSymbol, w.Symbol)),
		Side:     Side(strings.ToUpper(firstNonEmpty(w.Type, w.Side))),
		Quantity: valueOrZero(w.Quantity),
		Price:    valueOrZero(w.Price),
		Status:   OrderStatus(strings.ToUpper(firstNonEmpty(w.Status, string(StatusOpen)))),
	}
	switch {
	case w.CreatedAt != nil:
		o.CreatedAt = *w.CreatedAt
	case w.Date != nil:
		o.CreatedAt = *w.Date
	}
	return nil
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return decimal.NewFromFloat(id).String()
	default:
		return fmt.Sprint(id)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
