// Package portfolio derives the display values shown for holdings: per
// position P&L, account value, allocation and the dashboard summary.
package portfolio

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"trading-terminal-go/internal/models"
)

// RecentOrders is how many orders the dashboard summary lists.
const RecentOrders = 5

var hundred = decimal.NewFromInt(100)

// Row is one holding with its derived values.
type Row struct {
	Symbol       string
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
	// CurrentPrice is nil while the quote is pending.
	CurrentPrice *decimal.Decimal
	MarkPrice    decimal.Decimal
	MarketValue  decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
}

// Priced reports whether a quote has arrived for the row.
func (r Row) Priced() bool {
	return r.CurrentPrice != nil
}

// WithQuotes returns holdings with CurrentPrice filled from quotes where
// the holding carries none. quotes is keyed by upper-case symbol.
func WithQuotes(holdings []models.Holding, quotes map[string]decimal.Decimal) []models.Holding {
	out := make([]models.Holding, len(holdings))
	for i, h := range holdings {
		out[i] = h
		if h.HasQuote() {
			continue
		}
		if q, ok := quotes[strings.ToUpper(h.Symbol)]; ok {
			price := q
			out[i].CurrentPrice = &price
		}
	}
	return out
}

// Rows computes P&L per holding. A pending quote values the position at its
// average price, and a zero average price yields 0%.
func Rows(holdings []models.Holding) []Row {
	rows := make([]Row, 0, len(holdings))
	for _, h := range holdings {
		mark := h.MarkPrice()
		row := Row{
			Symbol:       strings.ToUpper(h.Symbol),
			Quantity:     h.Quantity,
			AveragePrice: h.AveragePrice,
			CurrentPrice: h.CurrentPrice,
			MarkPrice:    mark,
			MarketValue:  h.MarketValue(),
			PnL:          mark.Sub(h.AveragePrice).Mul(h.Quantity),
			PnLPercent:   decimal.Zero,
		}
		if h.AveragePrice.IsPositive() {
			row.PnLPercent = mark.Sub(h.AveragePrice).Div(h.AveragePrice).Mul(hundred)
		}
		rows = append(rows, row)
	}
	return rows
}

// MarketValue sums the market value of every holding.
func MarketValue(holdings []models.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.MarketValue())
	}
	return total
}

// UnrealizedPnL sums the P&L of rows.
func UnrealizedPnL(rows []Row) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.PnL)
	}
	return total
}

// Slice is one share of the allocation breakdown.
type Slice struct {
	Name    string
	Value   decimal.Decimal
	Percent decimal.Decimal
}

// Allocation splits the account into cash and each symbol with a positive
// market value. Percentages are of the account value.
func Allocation(cash decimal.Decimal, holdings []models.Holding) []Slice {
	slices := []Slice{{Name: "Cash", Value: cash}}
	for _, h := range holdings {
		value := h.MarketValue()
		if value.IsPositive() {
			slices = append(slices, Slice{Name: strings.ToUpper(h.Symbol), Value: value})
		}
	}
	return withPercent(slices)
}

// CashVersusStocks is the two-slice breakdown shown on the dashboard.
func CashVersusStocks(cash decimal.Decimal, holdings []models.Holding) []Slice {
	return withPercent([]Slice{
		{Name: "Cash", Value: cash},
		{Name: "Stocks", Value: MarketValue(holdings)},
	})
}

// FromBackend converts the backend's allocation breakdown, computing
// percentages locally.
func FromBackend(in []models.AllocationSlice) []Slice {
	slices := make([]Slice, 0, len(in))
	for _, a := range in {
		slices = append(slices, Slice{Name: a.Name, Value: a.Value})
	}
	return withPercent(slices)
}

func withPercent(slices []Slice) []Slice {
	total := decimal.Zero
	for _, s := range slices {
		total = total.Add(s.Value)
	}
	for i := range slices {
		slices[i].Percent = decimal.Zero
		if total.IsPositive() {
			slices[i].Percent = slices[i].Value.Div(total).Mul(hundred)
		}
	}
	return slices
}

// Summary is the dashboard snapshot.
type Summary struct {
	Cash          decimal.Decimal
	MarketValue   decimal.Decimal
	AccountValue  decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Allocation    []Slice
	RecentOrders  []models.Order
	OpenOrders    int
}

// Summarize builds the dashboard summary. Orders are listed newest first.
func Summarize(wallet *models.Wallet, p *models.Portfolio, orders []models.Order) Summary {
	var s Summary
	if wallet != nil {
		s.Cash = wallet.Balance
	}

	var holdings []models.Holding
	if p != nil {
		holdings = p.Holdings
		s.RealizedPnL = p.RealizedPnL
	}
	s.MarketValue = MarketValue(holdings)
	s.AccountValue = s.Cash.Add(s.MarketValue)
	s.UnrealizedPnL = UnrealizedPnL(Rows(holdings))
	s.Allocation = CashVersusStocks(s.Cash, holdings)

	sorted := append([]models.Order(nil), orders...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > RecentOrders {
		sorted = sorted[:RecentOrders]
	}
	s.RecentOrders = sorted

	for _, o := range orders {
		if o.IsOpen() {
			s.OpenOrders++
		}
	}
	return s
}
