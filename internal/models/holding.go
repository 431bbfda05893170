package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Holding is one owned position. CurrentPrice is nil while the price is
// unknown, which is distinct from a quoted price of zero.
type Holding struct {
	Symbol       string           `json:"symbol"`
	Quantity     decimal.Decimal  `json:"quantity"`
	AveragePrice decimal.Decimal  `json:"averagePrice"`
	CurrentPrice *decimal.Decimal `json:"currentPrice,omitempty"`
}

// HasQuote reports whether a current price has been fetched.
func (h Holding) HasQuote() bool {
	return h.CurrentPrice != nil
}

// MarkPrice is the price used to value the position: the current price when
// one is known and positive, otherwise the average cost.
func (h Holding) MarkPrice() decimal.Decimal {
	if h.CurrentPrice != nil && h.CurrentPrice.IsPositive() {
		return *h.CurrentPrice
	}
	return h.AveragePrice
}

// MarketValue is quantity × MarkPrice.
func (h Holding) MarketValue() decimal.Decimal {
	return h.Quantity.Mul(h.MarkPrice())
}

type holdingWire struct {
	StockSymbol  string           `json:"stockSymbol"`
	Symbol       string           `json:"symbol"`
	Quantity     *decimal.Decimal `json:"quantity"`
	AvgPrice     *decimal.Decimal `json:"avgPrice"`
	AveragePrice *decimal.Decimal `json:"averagePrice"`
	CurrentPrice *decimal.Decimal `json:"currentPrice"`
}

func (h *Holding) UnmarshalJSON(data []byte) error {
	var w holdingWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	avg := w.AvgPrice
	if avg == nil {
		avg = w.AveragePrice
	}
	*h = Holding{
		Symbol:       strings.ToUpper(firstNonEmpty(w.StockSymbol, w.Symbol)),
		Quantity:     valueOrZero(w.Quantity),
		AveragePrice: valueOrZero(avg),
		CurrentPrice: w.CurrentPrice,
	}
	return nil
}

// Portfolio is the backend's view of all holdings plus realized and
// unrealized profit.
type Portfolio struct {
	Holdings      []Holding       `json:"holdings"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
}

// Find returns the holding for symbol, matched case-insensitively.
func (p Portfolio) Find(symbol string) (Holding, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}

type portfolioWire struct {
	Holding            []Holding        `json:"holding"`
	Holdings           []Holding        `json:"holdings"`
	RealizedPnLUpper   *decimal.Decimal `json:"realizedPnL"`
	RealizedPnl        *decimal.Decimal `json:"realizedPnl"`
	TotalRealizedPnl   *decimal.Decimal `json:"totalRealizedPnl"`
	UnrealizedPnl      *decimal.Decimal `json:"unrealizedPnl"`
	TotalUnrealizedPnl *decimal.Decimal `json:"totalUnrealizedPnl"`
	Portfolio          json.RawMessage  `json:"portfolio"`
}

// UnmarshalJSON accepts a bare portfolio or one nested under "portfolio".
func (p *Portfolio) UnmarshalJSON(data []byte) error {
	var w portfolioWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Portfolio) > 0 && string(w.Portfolio) != "null" {
		return p.UnmarshalJSON(w.Portfolio)
	}

	holdings := w.Holding
	if len(holdings) == 0 {
		holdings = w.Holdings
	}
	if holdings == nil {
		holdings = []Holding{}
	}
	*p = Portfolio{
		Holdings:      holdings,
		RealizedPnL:   firstDecimal(w.TotalRealizedPnl, w.RealizedPnLUpper, w.RealizedPnl),
		UnrealizedPnL: firstDecimal(w.TotalUnrealizedPnl, w.UnrealizedPnl),
	}
	return nil
}

func firstDecimal(values ...*decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return decimal.Zero
}
