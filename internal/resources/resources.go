// Package resources binds each backend resource to a cache key, a fetch
// function, a polling interval and, for writes, the keys it invalidates.
package resources

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-terminal-go/internal/api"
	"trading-terminal-go/internal/config"
	"trading-terminal-go/internal/database"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/query"
)

// Cache keys.
var (
	WalletKey     = query.NewKey("wallet")
	PortfolioKey  = query.NewKey("portfolio")
	AllocationKey = query.NewKey("portfolio", "allocation")
	OrdersKey     = query.NewKey("orders")
	PriceKey      = query.NewKey("market", "price")
	StocksKey     = query.NewKey("market", "stocks")
	HistoryKey    = query.NewKey("market", "history")
)

// StocksPageSize is the page size used when listing stocks.
const StocksPageSize = 20

// MaxDeposit is the largest amount accepted by a single deposit.
var MaxDeposit = decimal.NewFromInt(1_000_000)

// ErrInvalidAmount is returned for deposits outside (0, MaxDeposit].
var ErrInvalidAmount = errors.New("amount must be greater than 0 and at most 1,000,000")

// Resources exposes the queries and mutations the views use.
type Resources struct {
	backend api.Backend
	cache   *query.Cache
	polling config.Polling
	journal *database.Journal
	logger  *zap.Logger
}

// New creates the resource table. journal may be nil.
func New(backend api.Backend, cache *query.Cache, polling config.Polling, journal *database.Journal, logger *zap.Logger) *Resources {
	return &Resources{
		backend: backend,
		cache:   cache,
		polling: polling,
		journal: journal,
		logger:  logger.Named("resources"),
	}
}

// Cache returns the cache the resources read through.
func (r *Resources) Cache() *query.Cache {
	return r.cache
}

// Wallet polls the cash balance.
func (r *Resources) Wallet() query.Query[*models.Wallet] {
	return query.Query[*models.Wallet]{
		Key:      WalletKey,
		Fetch:    r.backend.Wallet,
		Interval: r.polling.Wallet,
	}
}

// Portfolio is fetched on demand only.
func (r *Resources) Portfolio() query.Query[*models.Portfolio] {
	return query.Query[*models.Portfolio]{
		Key:   PortfolioKey,
		Fetch: r.backend.Portfolio,
	}
}

// Allocation is fetched on demand only.
func (r *Resources) Allocation() query.Query[[]models.AllocationSlice] {
	return query.Query[[]models.AllocationSlice]{
		Key:   AllocationKey,
		Fetch: r.backend.Allocation,
	}
}

// Orders polls the user's order list.
func (r *Resources) Orders() query.Query[[]models.Order] {
	return query.Query[[]models.Order]{
		Key:      OrdersKey,
		Fetch:    r.backend.MyOrders,
		Interval: r.polling.Orders,
	}
}

// Price polls the quote for symbol while a symbol is selected.
func (r *Resources) Price(symbol string) query.Query[*models.Quote] {
	symbol = normalizeSymbol(symbol)
	return query.Query[*models.Quote]{
		Key: append(append(query.Key{}, PriceKey...), symbol),
		Fetch: func(ctx context.Context) (*models.Quote, error) {
			return r.backend.Price(ctx, symbol)
		},
		Interval: r.polling.MarketPrice,
		Enabled:  func() bool { return symbol != "" },
	}
}

// History is the recent price series for symbol.
func (r *Resources) History(symbol string) query.Query[[]models.PricePoint] {
	symbol = normalizeSymbol(symbol)
	return query.Query[[]models.PricePoint]{
		Key: append(append(query.Key{}, HistoryKey...), symbol),
		Fetch: func(ctx context.Context) ([]models.PricePoint, error) {
			return r.backend.History(ctx, symbol)
		},
		Enabled: func() bool { return symbol != "" },
	}
}

// Stocks polls one page of the stock listing. Pages start at 1.
func (r *Resources) Stocks(page int) query.Query[[]models.Stock] {
	if page < 1 {
		page = 1
	}
	return query.Query[[]models.Stock]{
		Key: append(append(query.Key{}, StocksKey...), strconv.Itoa(page)),
		Fetch: func(ctx context.Context) ([]models.Stock, error) {
			return r.backend.Stocks(ctx, page, StocksPageSize)
		},
		Interval: r.polling.Stocks,
	}
}

// OrderInput is a placement request.
type OrderInput struct {
	Side    models.Side
	Request api.OrderRequest
}

// PlaceOrder submits a BUY or SELL order. Both sides invalidate the wallet,
// the order list and the portfolio.
func (r *Resources) PlaceOrder() query.Mutation[OrderInput, *models.Order] {
	return query.Mutation[OrderInput, *models.Order]{
		Run: func(ctx context.Context, in OrderInput) (*models.Order, error) {
			requestID := uuid.NewString()
			order, err := r.backend.PlaceOrder(api.WithRequestID(ctx, requestID), in.Side, in.Request)
			if err != nil {
				return nil, err
			}
			r.record(order, requestID)
			return order, nil
		},
		Invalidates: func(OrderInput) []query.Key {
			return []query.Key{WalletKey, OrdersKey, PortfolioKey}
		},
	}
}

// Cancel cancels an open order.
func (r *Resources) Cancel() query.Mutation[string, struct{}] {
	return query.Mutation[string, struct{}]{
		Run: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, r.backend.CancelOrder(ctx, id)
		},
		Invalidates: func(string) []query.Key {
			return []query.Key{WalletKey, OrdersKey, PortfolioKey}
		},
		Validate: requireID,
	}
}

// Execute force-executes an open order.
func (r *Resources) Execute() query.Mutation[string, struct{}] {
	return query.Mutation[string, struct{}]{
		Run: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, r.backend.ExecuteOrder(ctx, id)
		},
		Invalidates: func(string) []query.Key {
			return []query.Key{OrdersKey, PortfolioKey, WalletKey}
		},
		Validate: requireID,
	}
}

// Deposit adds funds to the wallet.
func (r *Resources) Deposit() query.Mutation[decimal.Decimal, struct{}] {
	return query.Mutation[decimal.Decimal, struct{}]{
		Run: func(ctx context.Context, amount decimal.Decimal) (struct{}, error) {
			return struct{}{}, r.backend.Deposit(ctx, amount)
		},
		Invalidates: func(decimal.Decimal) []query.Key {
			return []query.Key{WalletKey}
		},
		Validate: ValidateDeposit,
	}
}

// ValidateDeposit checks 0 < amount <= MaxDeposit.
func ValidateDeposit(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(MaxDeposit) {
		return ErrInvalidAmount
	}
	return nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("order id is required")
	}
	return nil
}

func (r *Resources) record(order *models.Order, requestID string) {
	if r.journal == nil {
		return
	}
	receipt := &models.OrderReceipt{
		RemoteID:  order.ID,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Quantity:  order.Quantity.String(),
		Price:     order.Price.String(),
		RequestID: requestID,
		PlacedAt:  time.Now(),
	}
	if err := r.journal.Record(receipt); err != nil {
		r.logger.Warn("Order placed but not journaled", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
