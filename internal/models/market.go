package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Wallet is the cash balance available for buying.
type Wallet struct {
	Balance decimal.Decimal `json:"balance"`
}

// Stock is one listed instrument.
type Stock struct {
	Symbol      string          `json:"symbol"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

type stockWire struct {
	Symbol      string           `json:"symbol"`
	Description string           `json:"description"`
	Name        string           `json:"name"`
	Price       *decimal.Decimal `json:"price"`
}

func (s *Stock) UnmarshalJSON(data []byte) error {
	var w stockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Stock{
		Symbol:      strings.ToUpper(w.Symbol),
		Description: firstNonEmpty(w.Description, w.Name),
		Price:       valueOrZero(w.Price),
	}
	return nil
}

// Matches reports whether the stock's symbol or description contains term,
// ignoring case. An empty term matches everything.
func (s Stock) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Symbol), term) ||
		strings.Contains(strings.ToLower(s.Description), term)
}

// Quote is the latest price for a symbol.
type Quote struct {
	Symbol       string          `json:"symbol"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

// PricePoint is one sample of a symbol's price history.
type PricePoint struct {
	Time  string          `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// Identity is what the backend reports about the signed-in user.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AllocationSlice is one entry of the backend's allocation breakdown.
type AllocationSlice struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// OrderLog is one audited state transition of an order.
type OrderLog struct {
	Event     string `json:"event"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}
