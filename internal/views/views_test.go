package views

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/portfolio"
	"trading-terminal-go/internal/signals"
	"trading-terminal-go/internal/ticket"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFormatINR(t *testing.T) {
	cases := map[string]string{
		"0":          "₹0.00",
		"255":        "₹255.00",
		"999.999":    "₹1,000.00",
		"1234":       "₹1,234.00",
		"100000":     "₹1,00,000.00",
		"1234567.5":  "₹12,34,567.50",
		"-1234":      "-₹1,234.00",
		"-0.001":     "₹0.00",
		"123456789":  "₹12,34,56,789.00",
		"25.5":       "₹25.50",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatINR(dec(in)), in)
	}
	assert.Equal(t, Missing, FormatINRPtr(nil))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+10.00%", FormatPercent(dec("10")))
	assert.Equal(t, "-5.50%", FormatPercent(dec("-5.5")))
	assert.Equal(t, "0.00%", FormatPercent(decimal.Zero))
}

func TestFormatDateTime(t *testing.T) {
	assert.Equal(t, Missing, FormatDateTime(time.Time{}))
	ts := time.Date(2024, 3, 5, 14, 7, 0, 0, time.Local)
	assert.Equal(t, "05 Mar 14:07", FormatDateTime(ts))
}

func TestNotices(t *testing.T) {
	t.Run("RateLimitToastsCollapse", func(t *testing.T) {
		n := NewNotices()
		n.Handle(signals.Signal{Kind: signals.RateLimited, RetryAfter: 30 * time.Second})
		n.Handle(signals.Signal{Kind: signals.RateLimited, RetryAfter: 12 * time.Second})
		n.Handle(signals.Signal{Kind: signals.RateLimited, RetryAfter: 12 * time.Second})

		toasts := n.Toasts()
		require.Len(t, toasts, 1)
		assert.Equal(t, ToastRateLimited, toasts[0].ID)
		assert.Contains(t, toasts[0].Message, "12 seconds")
	})

	t.Run("UnauthorizedCarriesMessage", func(t *testing.T) {
		n := NewNotices()
		n.Handle(signals.Signal{Kind: signals.Unauthorized, Message: "Token expired"})
		require.Len(t, n.Toasts(), 1)
		assert.Equal(t, "Token expired", n.Toasts()[0].Message)

		n.Handle(signals.Signal{Kind: signals.Unauthorized})
		assert.Equal(t, defaultUnauthorizedMessage, n.Toasts()[0].Message)
	})

	t.Run("ToastsExpire", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		n := NewNotices()
		n.now = func() time.Time { return now }
		n.Handle(signals.Signal{Kind: signals.RateLimited})

		now = now.Add(ToastTTL)
		assert.Empty(t, n.Toasts())
	})

	t.Run("BannerPersistsUntilDismissedOrRecovered", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		n := NewNotices()
		n.now = func() time.Time { return now }
		bus := signals.NewBus()
		n.Subscribe(bus)

		bus.Emit(signals.Signal{Kind: signals.ServiceUnavailable})
		now = now.Add(time.Hour)
		_, shown := n.Banner()
		assert.True(t, shown)
		assert.Contains(t, RenderNotices(n), "Service unavailable")

		n.Dismiss()
		_, shown = n.Banner()
		assert.False(t, shown)

		bus.Emit(signals.Signal{Kind: signals.ServiceUnavailable})
		n.Recovered()
		_, shown = n.Banner()
		assert.False(t, shown)
	})
}

func TestRender(t *testing.T) {
	t.Run("Orders", func(t *testing.T) {
		out := Orders([]models.Order{
			{ID: "o1", Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("2"), Price: dec("100"), Status: models.StatusOpen},
			{ID: "o2", Symbol: "TSLA", Side: models.SideSell, Quantity: dec("1"), Price: dec("50"), Status: models.StatusFilled},
		})
		assert.Contains(t, out, "AAPL")
		assert.Contains(t, out, "₹200.00")
		assert.Contains(t, out, "OPEN")
		assert.Contains(t, out, "cancel")
		assert.Contains(t, Orders(nil), "No orders yet")
	})

	t.Run("PortfolioShowsPendingQuote", func(t *testing.T) {
		out := Portfolio(portfolio.Rows([]models.Holding{{Symbol: "AAPL", Quantity: dec("1"), AveragePrice: dec("10")}}))
		assert.Contains(t, out, Missing)
		assert.Contains(t, out, "0.00%")
	})

	t.Run("StocksSearch", func(t *testing.T) {
		stocks := []models.Stock{{Symbol: "AAPL", Description: "Apple Inc"}, {Symbol: "TSLA", Description: "Tesla"}}
		assert.Len(t, FilterStocks(stocks, "apple"), 1)
		assert.Len(t, FilterStocks(stocks, ""), 2)
		out := Stocks(stocks, "tes", 2)
		assert.Contains(t, out, "TSLA")
		assert.NotContains(t, out, "AAPL")
		assert.Contains(t, out, "Page 2")
	})

	t.Run("TicketWarnings", func(t *testing.T) {
		form := ticket.NewForm(models.SideBuy)
		d := ticket.Draft{Symbol: "AAPL", Quantity: dec("10"), Price: dec("25.50")}
		out := Ticket(d, form.Assess(d, ticket.Snapshot{Balance: dec("200")}), form)
		assert.Contains(t, out, "₹255.00")
		assert.Contains(t, out, "Insufficient funds.")
	})

	t.Run("Dashboard", func(t *testing.T) {
		s := portfolio.Summarize(&models.Wallet{Balance: dec("1000")}, &models.Portfolio{}, nil)
		out := Dashboard(s)
		assert.Contains(t, out, "Account value")
		assert.Contains(t, out, "₹1,000.00")
		assert.Contains(t, out, "Cash")
	})

	t.Run("Price", func(t *testing.T) {
		assert.Contains(t, Price("", nil, time.Time{}), "Select a symbol")
		assert.Contains(t, Price("aapl", &models.Quote{CurrentPrice: dec("190.25")}, time.Now()), "₹190.25")
	})

	t.Run("History", func(t *testing.T) {
		out := History("aapl", []models.PricePoint{
			{Time: "09:15", Price: dec("100")},
			{Time: "09:16", Price: dec("110")},
			{Time: "09:17", Price: dec("105")},
		})
		assert.Contains(t, out, "AAPL")
		assert.Contains(t, out, "▁█")
		assert.Contains(t, out, "09:15 to 09:17")
		assert.Contains(t, out, "₹110.00")
		assert.Contains(t, History("tsla", nil), "No price history for TSLA")
	})
}
