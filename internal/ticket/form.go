// Package ticket holds the state of the order entry form: the advisory
// funds and holdings checks, server error mapping and the rate-limit
// cooldown.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-terminal-go/internal/api"
	"trading-terminal-go/internal/models"
)

// DefaultCooldown applies when a 429 carries no retry hint.
const DefaultCooldown = 30 * time.Second

// ErrSubmitDisabled is returned when Submit is called while the submit
// control would be disabled. No request is sent.
var ErrSubmitDisabled = errors.New("order submission is disabled")

// CooldownStore keeps the rate-limit deadline between form instances.
type CooldownStore interface {
	LoadCooldown(side models.Side) (time.Time, error)
	SaveCooldown(side models.Side, until time.Time) error
	ClearCooldown(side models.Side) error
}

// PlaceFunc sends an order to the backend.
type PlaceFunc func(ctx context.Context, side models.Side, req api.OrderRequest) (*models.Order, error)

// Snapshot is the last-fetched wallet and holdings the checks run against.
type Snapshot struct {
	Balance  decimal.Decimal
	Holdings []models.Holding
}

// OwnedShares returns the quantity held of symbol.
func (s Snapshot) OwnedShares(symbol string) decimal.Decimal {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero
	}
	for _, h := range s.Holdings {
		if strings.EqualFold(h.Symbol, symbol) {
			return h.Quantity
		}
	}
	return decimal.Zero
}

// Assessment is the derived state of the form for one draft.
type Assessment struct {
	Side               models.Side
	Total              decimal.Decimal
	Balance            decimal.Decimal
	OwnedShares        decimal.Decimal
	InsufficientFunds  bool
	InsufficientShares bool
	CoolingDown        bool
	SecondsLeft        int
	SubmitDisabled     bool
}

// Reason explains why submission is disabled.
func (a Assessment) Reason() string {
	switch {
	case a.CoolingDown:
		return fmt.Sprintf("cooling down, %ds left", a.SecondsLeft)
	case a.InsufficientFunds:
		return "insufficient funds"
	case a.InsufficientShares:
		return "insufficient holdings"
	case a.SubmitDisabled:
		return "order total must be greater than zero"
	}
	return ""
}

// Form is one order entry form for a fixed side.
type Form struct {
	side            models.Side
	now             func() time.Time
	defaultCooldown time.Duration
	logger          *zap.Logger
	store           CooldownStore

	mu            sync.Mutex
	cooldownUntil time.Time
	fieldErrors   FieldErrors
	serverError   string
}

// Option configures a Form.
type Option func(*Form)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Form) { f.now = now }
}

// WithDefaultCooldown sets the cooldown used when a 429 has no hint.
func WithDefaultCooldown(d time.Duration) Option {
	return func(f *Form) {
		if d > 0 {
			f.defaultCooldown = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Form) { f.logger = logger.Named("ticket") }
}

// WithCooldownStore loads any saved deadline and keeps it in store.
func WithCooldownStore(store CooldownStore) Option {
	return func(f *Form) { f.store = store }
}

// NewForm creates a form for side.
func NewForm(side models.Side, opts ...Option) *Form {
	f := &Form{
		side:            side,
		now:             time.Now,
		defaultCooldown: DefaultCooldown,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.store != nil {
		until, err := f.store.LoadCooldown(side)
		if err != nil {
			f.logger.Warn("Failed to load cooldown", zap.Error(err))
		}
		f.cooldownUntil = until
	}
	return f
}

// Side returns the side the form places.
func (f *Form) Side() models.Side {
	return f.side
}

// Assess computes the advisory checks for d against snap. A buy is
// disabled when the total exceeds the balance or is not positive; a sell
// when the quantity exceeds the shares held. Both are disabled while
// cooling down.
func (f *Form) Assess(d Draft, snap Snapshot) Assessment {
	d = d.Normalize()
	a := Assessment{
		Side:        f.side,
		Total:       d.Total(),
		Balance:     snap.Balance,
		OwnedShares: snap.OwnedShares(d.Symbol),
		SecondsLeft: f.SecondsLeft(),
	}
	a.CoolingDown = a.SecondsLeft > 0

	switch f.side {
	case models.SideBuy:
		a.InsufficientFunds = a.Total.GreaterThan(a.Balance)
		a.SubmitDisabled = a.InsufficientFunds || !a.Total.IsPositive()
	case models.SideSell:
		a.InsufficientShares = d.Quantity.GreaterThan(a.OwnedShares)
		a.SubmitDisabled = a.InsufficientShares
	}
	if a.CoolingDown {
		a.SubmitDisabled = true
	}
	return a
}

// Submit validates and places d. Local validation failures return
// FieldErrors; a disabled form returns ErrSubmitDisabled. Backend errors are
// returned after being reflected in the form state.
func (f *Form) Submit(ctx context.Context, d Draft, snap Snapshot, place PlaceFunc) (*models.Order, error) {
	d = d.Normalize()

	f.mu.Lock()
	f.fieldErrors = nil
	f.serverError = ""
	f.mu.Unlock()

	if errs := d.Validate(); errs != nil {
		f.setErrors(errs, "")
		return nil, errs
	}
	if a := f.Assess(d, snap); a.SubmitDisabled {
		return nil, fmt.Errorf("%w: %s", ErrSubmitDisabled, a.Reason())
	}

	order, err := place(ctx, f.side, api.OrderRequest{Symbol: d.Symbol, Quantity: d.Quantity, Price: d.Price})
	if err != nil {
		f.fail(err)
		return nil, err
	}

	f.logger.Info("Order submitted", zap.String("side", string(f.side)), zap.String("symbol", d.Symbol))
	f.Reset()
	return order, nil
}

func (f *Form) fail(err error) {
	apiErr, ok := api.AsAPIError(err)
	if !ok {
		f.setErrors(nil, err.Error())
		return
	}

	switch apiErr.Status {
	case http.StatusBadRequest:
		f.setErrors(MapServerError(apiErr.Message, apiErr.Fields), apiErr.Message)
	case http.StatusTooManyRequests:
		wait := apiErr.RetryAfter
		if wait <= 0 {
			wait = f.defaultCooldown
		}
		until := f.now().Add(wait)
		f.mu.Lock()
		f.cooldownUntil = until
		f.mu.Unlock()
		if f.store != nil {
			if err := f.store.SaveCooldown(f.side, until); err != nil {
				f.logger.Warn("Failed to save cooldown", zap.Error(err))
			}
		}
		f.setErrors(nil, apiErr.Message)
		f.logger.Warn("Order rate limited", zap.Duration("cooldown", wait))
	default:
		f.setErrors(nil, apiErr.Message)
	}
}

func (f *Form) setErrors(errs FieldErrors, server string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldErrors = errs
	f.serverError = server
}

// Errors returns the current per-field errors.
func (f *Form) Errors() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fieldErrors
}

// ServerError returns the last backend error message.
func (f *Form) ServerError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serverError
}

// CoolingDown reports whether a rate-limit cooldown is in effect.
func (f *Form) CoolingDown() bool {
	return f.SecondsLeft() > 0
}

// SecondsLeft is the remaining cooldown rounded up to whole seconds.
func (f *Form) SecondsLeft() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cooldownUntil.IsZero() {
		return 0
	}
	left := f.cooldownUntil.Sub(f.now())
	if left <= 0 {
		f.cooldownUntil = time.Time{}
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// Reset clears errors. The cooldown survives a reset.
func (f *Form) Reset() {
	f.setErrors(nil, "")
}

// Clear drops errors and any cooldown. Used when the session changes.
func (f *Form) Clear() {
	f.mu.Lock()
	f.fieldErrors = nil
	f.serverError = ""
	f.cooldownUntil = time.Time{}
	f.mu.Unlock()

	if f.store != nil {
		if err := f.store.ClearCooldown(f.side); err != nil {
			f.logger.Warn("Failed to clear cooldown", zap.Error(err))
		}
	}
}
