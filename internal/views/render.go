// Package views renders terminal output for the trading client.
package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/portfolio"
	"trading-terminal-go/internal/ticket"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		MarginBottom(1)

	cardStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#334155")).
		Padding(0, 1)

	bannerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FEF3C7")).
		Background(lipgloss.Color("#B45309")).
		Padding(0, 1)

	toastStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#F59E0B")).
		Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	gainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#94A3B8"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	// Status badges
	openBadge      = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Bold(true)
	filledBadge    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	cancelledBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		}).
		Headers(headers...)
}

func signed(d decimal.Decimal, text string) string {
	if d.IsNegative() {
		return lossStyle.Render(text)
	}
	return gainStyle.Render(text)
}

// Loading is the placeholder shown while the session probe is pending.
func Loading() string {
	return mutedStyle.Render("Checking session...")
}

// SignInRequired is shown when the guard redirects away from a protected
// location.
func SignInRequired(from string) string {
	return warnStyle.Render("Sign in required") + mutedStyle.Render(fmt.Sprintf(" to open %s. Run `login` first.", from))
}

// RenderNotices renders the service banner and live toasts.
func RenderNotices(n *Notices) string {
	var parts []string
	if text, ok := n.Banner(); ok {
		parts = append(parts, bannerStyle.Render(text))
	}
	for _, t := range n.Toasts() {
		parts = append(parts, toastStyle.Render(t.Message))
	}
	return strings.Join(parts, "\n")
}

// Identity renders the signed-in user.
func Identity(id *models.Identity) string {
	if id == nil {
		return mutedStyle.Render("Signed in")
	}
	name := id.Username
	if name == "" {
		name = id.Email
	}
	return fmt.Sprintf("Signed in as %s %s", lipgloss.NewStyle().Bold(true).Render(name), mutedStyle.Render(id.Email))
}

// Wallet renders the cash balance.
func Wallet(w *models.Wallet) string {
	if w == nil {
		return cardStyle.Render("Cash balance\n" + Missing)
	}
	return cardStyle.Render("Cash balance\n" + lipgloss.NewStyle().Bold(true).Render(FormatINR(w.Balance)))
}

// Price renders the latest quote for a symbol.
func Price(symbol string, q *models.Quote, updated time.Time) string {
	if symbol == "" {
		return mutedStyle.Render("Select a symbol to see its live price.")
	}
	value := Missing
	if q != nil {
		value = FormatINR(q.CurrentPrice)
	}
	stamp := Missing
	if !updated.IsZero() {
		stamp = updated.Local().Format("15:04:05")
	}
	return cardStyle.Render(fmt.Sprintf("%s\n%s\n%s",
		titleStyle.UnsetMarginBottom().Render(strings.ToUpper(symbol)),
		lipgloss.NewStyle().Bold(true).Render(value),
		mutedStyle.Render("updated "+stamp),
	))
}

// History renders a price series as a sparkline with its range.
func History(symbol string, points []models.PricePoint) string {
	if len(points) == 0 {
		return mutedStyle.Render("No price history for " + strings.ToUpper(symbol) + ".")
	}
	bars := []rune("▁▂▃▄▅▆▇█")
	low, high := points[0].Price, points[0].Price
	for _, p := range points[1:] {
		low = decimal.Min(low, p.Price)
		high = decimal.Max(high, p.Price)
	}
	span := high.Sub(low)

	var line strings.Builder
	for _, p := range points {
		i := 0
		if span.IsPositive() {
			i = int(p.Price.Sub(low).Div(span).Mul(decimal.NewFromInt(int64(len(bars) - 1))).Round(0).IntPart())
		}
		line.WriteRune(bars[i])
	}
	return fmt.Sprintf("%s %s\n%s",
		lipgloss.NewStyle().Bold(true).Render(strings.ToUpper(symbol)),
		gainStyle.Render(line.String()),
		mutedStyle.Render(fmt.Sprintf("%s to %s  low %s  high %s",
			points[0].Time, points[len(points)-1].Time, FormatINR(low), FormatINR(high))))
}

// Ticket renders the order form state for a draft.
func Ticket(d ticket.Draft, a ticket.Assessment, form *ticket.Form) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", a.Side, d.Symbol)
	fmt.Fprintf(&b, "Quantity   %s\n", FormatQuantity(d.Quantity))
	fmt.Fprintf(&b, "Limit      %s\n", FormatINR(d.Price))
	fmt.Fprintf(&b, "Estimated  %s\n", FormatINR(a.Total))
	if a.Side == models.SideBuy {
		fmt.Fprintf(&b, "Available  %s", FormatINR(a.Balance))
	} else {
		fmt.Fprintf(&b, "Owned      %s", FormatQuantity(a.OwnedShares))
	}

	if a.InsufficientFunds {
		b.WriteString("\n" + errorStyle.Render("Insufficient funds."))
	}
	if a.InsufficientShares {
		b.WriteString("\n" + errorStyle.Render("Insufficient holdings."))
	}
	if form != nil {
		for _, field := range []ticket.Field{ticket.FieldSymbol, ticket.FieldQuantity, ticket.FieldPrice} {
			if msg, ok := form.Errors()[field]; ok {
				b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("%s: %s", field, msg)))
			}
		}
		if msg := form.ServerError(); msg != "" {
			b.WriteString("\n" + errorStyle.Render(msg))
		}
	}
	if a.CoolingDown {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("Cool down: %ds", a.SecondsLeft)))
	}
	return cardStyle.Render(b.String())
}

func statusBadge(s models.OrderStatus) string {
	switch s {
	case models.StatusOpen:
		return openBadge.Render(string(s))
	case models.StatusFilled:
		return filledBadge.Render(string(s))
	case models.StatusCancelled:
		return cancelledBadge.Render(string(s))
	}
	return string(s)
}

// Orders renders the order history. Open orders are marked as cancellable.
func Orders(orders []models.Order) string {
	if len(orders) == 0 {
		return mutedStyle.Render("No orders yet.")
	}
	t := newTable("ID", "Time", "Symbol", "Side", "Qty", "Price", "Total", "Status", "")
	for _, o := range orders {
		action := ""
		if o.IsOpen() {
			action = "cancel | execute"
		}
		t.Row(o.ID, FormatDateTime(o.CreatedAt), o.Symbol, string(o.Side),
			FormatQuantity(o.Quantity), FormatINR(o.Price), FormatINR(o.Total()), statusBadge(o.Status), action)
	}
	return t.Render()
}

// Portfolio renders holdings with unrealized P&L.
func Portfolio(rows []portfolio.Row) string {
	if len(rows) == 0 {
		return mutedStyle.Render("No holdings yet. Executed BUY orders will appear as positions here.")
	}
	t := newTable("Symbol", "Qty", "Avg price", "Current price", "Unrealized PnL")
	for _, r := range rows {
		pnl := fmt.Sprintf("%s (%s)", FormatINR(r.PnL), FormatPercent(r.PnLPercent))
		t.Row(r.Symbol, FormatQuantity(r.Quantity), FormatINR(r.AveragePrice), FormatINRPtr(r.CurrentPrice), signed(r.PnL, pnl))
	}
	return t.Render()
}

// Allocation renders slices as horizontal bars.
func Allocation(slices []portfolio.Slice) string {
	const width = 30
	var b strings.Builder
	for i, s := range slices {
		n := int(s.Percent.Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(width)).Round(0).IntPart())
		if n < 0 {
			n = 0
		}
		if n > width {
			n = width
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-8s %s%s %6s  %s", s.Name,
			gainStyle.Render(strings.Repeat("█", n)), strings.Repeat(" ", width-n),
			s.Percent.StringFixed(1)+"%", FormatINR(s.Value))
	}
	return b.String()
}

// FilterStocks keeps the stocks whose symbol or description contain term.
func FilterStocks(stocks []models.Stock, term string) []models.Stock {
	out := make([]models.Stock, 0, len(stocks))
	for _, s := range stocks {
		if s.Matches(term) {
			out = append(out, s)
		}
	}
	return out
}

// Stocks renders one page of the stock listing after the local search.
func Stocks(stocks []models.Stock, search string, page int) string {
	filtered := FilterStocks(stocks, search)
	footer := mutedStyle.Render(fmt.Sprintf("Page %d", page))
	if len(filtered) == 0 {
		return mutedStyle.Render("No stocks match your search.") + "\n" + footer
	}
	t := newTable("Symbol", "Description", "Price")
	for _, s := range filtered {
		t.Row(s.Symbol, s.Description, FormatINR(s.Price))
	}
	return t.Render() + "\n" + footer
}

// Dashboard renders the account summary.
func Dashboard(s portfolio.Summary) string {
	account := cardStyle.Render(fmt.Sprintf("Account value\n%s\n%s\n%s",
		lipgloss.NewStyle().Bold(true).Render(FormatINR(s.AccountValue)),
		"Cash            "+FormatINR(s.Cash),
		"Market value    "+FormatINR(s.MarketValue),
	))
	pnl := cardStyle.Render(fmt.Sprintf("Realized PnL\n%s\n%s",
		signed(s.RealizedPnL, FormatINR(s.RealizedPnL)),
		mutedStyle.Render("Unrealized "+FormatINR(s.UnrealizedPnL)),
	))

	recent := Orders(s.RecentOrders)
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Dashboard"),
		lipgloss.JoinHorizontal(lipgloss.Top, account, " ", pnl),
		"",
		Allocation(s.Allocation),
		"",
		headerStyle.Render(fmt.Sprintf("Recent orders (%d open)", s.OpenOrders)),
		recent,
	)
}

// Receipts renders the local order journal.
func Receipts(receipts []models.OrderReceipt) string {
	if len(receipts) == 0 {
		return mutedStyle.Render("No orders placed from this terminal yet.")
	}
	t := newTable("Placed", "Order", "Symbol", "Side", "Qty", "Price", "Request")
	for _, r := range receipts {
		t.Row(FormatDateTime(r.PlacedAt), r.RemoteID, r.Symbol, r.Side, r.Quantity, r.Price, r.RequestID)
	}
	return t.Render()
}

// OrderLogs renders the audit trail of one order.
func OrderLogs(logs []models.OrderLog) string {
	if len(logs) == 0 {
		return mutedStyle.Render("No log entries.")
	}
	t := newTable("Time", "Event", "Message")
	for _, l := range logs {
		when := Missing
		if ts, err := time.Parse(time.RFC3339, l.CreatedAt); err == nil {
			when = FormatDateTime(ts)
		}
		t.Row(when, l.Event, l.Message)
	}
	return t.Render()
}
