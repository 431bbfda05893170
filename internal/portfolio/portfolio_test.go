package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-terminal-go/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func price(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestRows(t *testing.T) {
	holdings := []models.Holding{
		{Symbol: "aapl", Quantity: dec("10"), AveragePrice: dec("100"), CurrentPrice: price("110")},
		{Symbol: "TSLA", Quantity: dec("2"), AveragePrice: dec("200")},
		{Symbol: "FREE", Quantity: dec("5"), AveragePrice: dec("0"), CurrentPrice: price("4")},
	}

	rows := Rows(holdings)
	require.Len(t, rows, 3)

	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.True(t, rows[0].Priced())
	assert.True(t, rows[0].PnL.Equal(dec("100")))
	assert.True(t, rows[0].PnLPercent.Equal(dec("10")))
	assert.True(t, rows[0].MarketValue.Equal(dec("1100")))

	assert.False(t, rows[1].Priced())
	assert.True(t, rows[1].MarkPrice.Equal(dec("200")))
	assert.True(t, rows[1].PnL.IsZero())

	assert.True(t, rows[2].PnL.Equal(dec("20")))
	assert.True(t, rows[2].PnLPercent.IsZero())

	assert.True(t, UnrealizedPnL(rows).Equal(dec("120")))
}

func TestWithQuotes(t *testing.T) {
	holdings := []models.Holding{
		{Symbol: "AAPL", Quantity: dec("1"), AveragePrice: dec("100")},
		{Symbol: "MSFT", Quantity: dec("1"), AveragePrice: dec("100"), CurrentPrice: price("300")},
	}

	out := WithQuotes(holdings, map[string]decimal.Decimal{"AAPL": dec("0"), "MSFT": dec("1")})

	require.NotNil(t, out[0].CurrentPrice)
	assert.True(t, out[0].CurrentPrice.IsZero())
	assert.True(t, out[1].CurrentPrice.Equal(dec("300")))
	assert.Nil(t, holdings[0].CurrentPrice)
}

func TestAllocation(t *testing.T) {
	holdings := []models.Holding{
		{Symbol: "AAPL", Quantity: dec("5"), AveragePrice: dec("100"), CurrentPrice: price("120")},
		{Symbol: "ZERO", Quantity: dec("0"), AveragePrice: dec("50")},
		{Symbol: "PEND", Quantity: dec("2"), AveragePrice: dec("200")},
	}

	slices := Allocation(dec("600"), holdings)

	require.Len(t, slices, 3)
	assert.Equal(t, "Cash", slices[0].Name)
	assert.Equal(t, "AAPL", slices[1].Name)
	assert.True(t, slices[1].Value.Equal(dec("600")))
	assert.Equal(t, "PEND", slices[2].Name)
	assert.True(t, slices[2].Value.Equal(dec("400")))
	assert.True(t, slices[0].Percent.Equal(dec("37.5")))

	empty := Allocation(decimal.Zero, nil)
	require.Len(t, empty, 1)
	assert.True(t, empty[0].Percent.IsZero())
}

func TestFromBackend(t *testing.T) {
	slices := FromBackend([]models.AllocationSlice{
		{Name: "Cash", Value: dec("750")},
		{Name: "AAPL", Value: dec("250")},
	})
	require.Len(t, slices, 2)
	assert.True(t, slices[0].Percent.Equal(dec("75")))
	assert.True(t, slices[1].Percent.Equal(dec("25")))
	assert.Empty(t, FromBackend(nil))
}

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var orders []models.Order
	for i := 0; i < 7; i++ {
		status := models.StatusFilled
		if i%2 == 0 {
			status = models.StatusOpen
		}
		orders = append(orders, models.Order{ID: string(rune('a' + i)), Status: status, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	s := Summarize(
		&models.Wallet{Balance: dec("1000")},
		&models.Portfolio{
			Holdings:    []models.Holding{{Symbol: "AAPL", Quantity: dec("2"), AveragePrice: dec("100"), CurrentPrice: price("150")}},
			RealizedPnL: dec("-25"),
		},
		orders,
	)

	assert.True(t, s.MarketValue.Equal(dec("300")))
	assert.True(t, s.AccountValue.Equal(dec("1300")))
	assert.True(t, s.RealizedPnL.Equal(dec("-25")))
	assert.True(t, s.UnrealizedPnL.Equal(dec("100")))
	require.Len(t, s.RecentOrders, RecentOrders)
	assert.Equal(t, "g", s.RecentOrders[0].ID)
	assert.Equal(t, "c", s.RecentOrders[4].ID)
	assert.Equal(t, 4, s.OpenOrders)
	require.Len(t, s.Allocation, 2)
	assert.Equal(t, "Stocks", s.Allocation[1].Name)

	empty := Summarize(nil, nil, nil)
	assert.True(t, empty.AccountValue.IsZero())
	assert.Empty(t, empty.RecentOrders)
}
