package sandbox

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by the ledger. Their text is sent to clients as is.
var (
	ErrEmailTaken          = errors.New("Email is already registered")
	ErrBadCredentials      = errors.New("Invalid email or password")
	ErrSymbolRequired      = errors.New("Symbol is required")
	ErrUnknownSymbol       = errors.New("Invalid symbol")
	ErrQuantity            = errors.New("Quantity must be greater than zero")
	ErrPrice               = errors.New("Price must be greater than zero")
	ErrInsufficientBalance = errors.New("Insufficient balance")
	ErrInsufficientShares  = errors.New("Insufficient quantity to sell")
	ErrOrderNotFound       = errors.New("Order not found")
	ErrOrderNotOpen        = errors.New("Only open orders can be changed")
	ErrAmount              = errors.New("Amount must be greater than 0 and at most 1000000")
)

var maxDeposit = decimal.NewFromInt(1_000_000)

type position struct {
	quantity decimal.Decimal
	avgPrice decimal.Decimal
	// reserved is held by open sell orders.
	reserved decimal.Decimal
}

type logEntry struct {
	event   string
	message string
	at      time.Time
}

type order struct {
	id        string
	owner     string
	symbol    string
	side      string
	quantity  decimal.Decimal
	price     decimal.Decimal
	status    string
	createdAt time.Time
	logs      []logEntry
}

func (o *order) log(event, message string, at time.Time) {
	o.logs = append(o.logs, logEntry{event: event, message: message, at: at})
}

type account struct {
	id        string
	username  string
	email     string
	password  string
	balance   decimal.Decimal
	realized  decimal.Decimal
	holdings  map[string]*position
	orders    []*order
	createdAt time.Time
}

type listing struct {
	symbol      string
	description string
	price       decimal.Decimal
}

// ledger is the in-memory state of the sandbox. Callers hold Server.mu.
type ledger struct {
	startingCash decimal.Decimal
	now          func() time.Time

	accounts map[string]*account // by email
	byID     map[string]*account
	sessions map[string]string // token -> account id
	listings map[string]*listing
	orders   map[string]*order
}

func newLedger(startingCash decimal.Decimal, now func() time.Time) *ledger {
	l := &ledger{
		startingCash: startingCash,
		now:          now,
		accounts:     make(map[string]*account),
		byID:         make(map[string]*account),
		sessions:     make(map[string]string),
		listings:     make(map[string]*listing),
		orders:       make(map[string]*order),
	}
	for _, s := range seedListings {
		l.listings[s.symbol] = &listing{symbol: s.symbol, description: s.description, price: decimal.RequireFromString(s.price)}
	}
	return l
}

var seedListings = []struct{ symbol, description, price string }{
	{"AAPL", "Apple Inc.", "189.50"},
	{"GOOGL", "Alphabet Inc. Class A", "142.80"},
	{"HDFCBANK", "HDFC Bank Ltd.", "1450.60"},
	{"INFY", "Infosys Ltd.", "1520.35"},
	{"MSFT", "Microsoft Corporation", "415.20"},
	{"RELIANCE", "Reliance Industries Ltd.", "2950.40"},
	{"TCS", "Tata Consultancy Services Ltd.", "3890.00"},
	{"TSLA", "Tesla, Inc.", "248.75"},
}

func (l *ledger) register(username, email, password string) (*account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := l.accounts[email]; ok {
		return nil, "", ErrEmailTaken
	}
	a := &account{
		id:        uuid.NewString(),
		username:  username,
		email:     email,
		password:  password,
		balance:   l.startingCash,
		holdings:  make(map[string]*position),
		createdAt: l.now(),
	}
	l.accounts[email] = a
	l.byID[a.id] = a
	return a, l.openSession(a), nil
}

func (l *ledger) login(email, password string) (*account, string, error) {
	a, ok := l.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || a.password != password {
		return nil, "", ErrBadCredentials
	}
	return a, l.openSession(a), nil
}

func (l *ledger) openSession(a *account) string {
	token := uuid.NewString()
	l.sessions[token] = a.id
	return token
}

func (l *ledger) lookup(token string) (*account, bool) {
	id, ok := l.sessions[token]
	if !ok {
		return nil, false
	}
	a, ok := l.byID[id]
	return a, ok
}

func (l *ledger) logout(token string) {
	delete(l.sessions, token)
}

func (l *ledger) deposit(a *account, amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(maxDeposit) {
		return ErrAmount
	}
	a.balance = a.balance.Add(amount)
	return nil
}

func (l *ledger) listing(symbol string) (*listing, bool) {
	s, ok := l.listings[strings.ToUpper(strings.TrimSpace(symbol))]
	return s, ok
}

func (l *ledger) sortedListings() []*listing {
	out := make([]*listing, 0, len(l.listings))
	for _, s := range l.listings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].symbol < out[j].symbol })
	return out
}

// place opens an order. Buys reserve cash and sells reserve shares until the
// order is executed or cancelled.
func (l *ledger) place(a *account, side, symbol string, quantity, price decimal.Decimal) (*order, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	if _, ok := l.listings[symbol]; !ok {
		return nil, ErrUnknownSymbol
	}
	if !quantity.IsPositive() {
		return nil, ErrQuantity
	}
	if !price.IsPositive() {
		return nil, ErrPrice
	}

	total := quantity.Mul(price)
	switch side {
	case "BUY":
		if total.GreaterThan(a.balance) {
			return nil, ErrInsufficientBalance
		}
		a.balance = a.balance.Sub(total)
	case "SELL":
		p, ok := a.holdings[symbol]
		if !ok || quantity.GreaterThan(p.quantity.Sub(p.reserved)) {
			return nil, ErrInsufficientShares
		}
		p.reserved = p.reserved.Add(quantity)
	}

	o := &order{
		id:        uuid.NewString(),
		owner:     a.id,
		symbol:    symbol,
		side:      side,
		quantity:  quantity,
		price:     price,
		status:    "OPEN",
		createdAt: l.now(),
	}
	o.log("CREATED", side+" order placed", o.createdAt)
	a.orders = append(a.orders, o)
	l.orders[o.id] = o
	return o, nil
}

func (l *ledger) openOrder(a *account, id string) (*order, error) {
	o, ok := l.orders[id]
	if !ok || o.owner != a.id {
		return nil, ErrOrderNotFound
	}
	if o.status != "OPEN" {
		return nil, ErrOrderNotOpen
	}
	return o, nil
}

func (l *ledger) cancel(a *account, id string) (*order, error) {
	o, err := l.openOrder(a, id)
	if err != nil {
		return nil, err
	}
	switch o.side {
	case "BUY":
		a.balance = a.balance.Add(o.quantity.Mul(o.price))
	case "SELL":
		p := a.holdings[o.symbol]
		p.reserved = p.reserved.Sub(o.quantity)
	}
	o.status = "CANCELLED"
	o.log("CANCELLED", "Order cancelled by user", l.now())
	return o, nil
}

// execute fills an open order at its limit price.
func (l *ledger) execute(a *account, id string) (*order, error) {
	o, err := l.openOrder(a, id)
	if err != nil {
		return nil, err
	}

	p, ok := a.holdings[o.symbol]
	switch o.side {
	case "BUY":
		if !ok {
			p = &position{}
			a.holdings[o.symbol] = p
		}
		cost := p.quantity.Mul(p.avgPrice).Add(o.quantity.Mul(o.price))
		p.quantity = p.quantity.Add(o.quantity)
		p.avgPrice = cost.Div(p.quantity).Round(4)
	case "SELL":
		p.reserved = p.reserved.Sub(o.quantity)
		p.quantity = p.quantity.Sub(o.quantity)
		a.realized = a.realized.Add(o.price.Sub(p.avgPrice).Mul(o.quantity))
		a.balance = a.balance.Add(o.quantity.Mul(o.price))
		if p.quantity.IsZero() {
			delete(a.holdings, o.symbol)
		}
	}
	o.status = "FILLED"
	o.log("FILLED", "Order executed at "+o.price.StringFixed(2), l.now())
	return o, nil
}

func (l *ledger) unrealized(a *account) decimal.Decimal {
	total := decimal.Zero
	for symbol, p := range a.holdings {
		if s, ok := l.listings[symbol]; ok {
			total = total.Add(s.price.Sub(p.avgPrice).Mul(p.quantity))
		}
	}
	return total
}
