// Package apitest provides a testify mock of api.Backend.
package apitest

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"trading-terminal-go/internal/api"
	"trading-terminal-go/internal/models"
)

// MockBackend is a mock implementation of api.Backend.
type MockBackend struct {
	mock.Mock
}

var _ api.Backend = (*MockBackend)(nil)

func (m *MockBackend) Me(ctx context.Context) (*models.Identity, error) {
	args := m.Called(ctx)
	identity, _ := args.Get(0).(*models.Identity)
	return identity, args.Error(1)
}

func (m *MockBackend) Login(ctx context.Context, req api.LoginRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockBackend) SignUp(ctx context.Context, req api.SignUpRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockBackend) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) Forget() error {
	return m.Called().Error(0)
}

func (m *MockBackend) Wallet(ctx context.Context) (*models.Wallet, error) {
	args := m.Called(ctx)
	wallet, _ := args.Get(0).(*models.Wallet)
	return wallet, args.Error(1)
}

func (m *MockBackend) Deposit(ctx context.Context, amount decimal.Decimal) error {
	return m.Called(ctx, amount).Error(0)
}

func (m *MockBackend) Portfolio(ctx context.Context) (*models.Portfolio, error) {
	args := m.Called(ctx)
	portfolio, _ := args.Get(0).(*models.Portfolio)
	return portfolio, args.Error(1)
}

func (m *MockBackend) Allocation(ctx context.Context) ([]models.AllocationSlice, error) {
	args := m.Called(ctx)
	slices, _ := args.Get(0).([]models.AllocationSlice)
	return slices, args.Error(1)
}

func (m *MockBackend) Stocks(ctx context.Context, page, limit int) ([]models.Stock, error) {
	args := m.Called(ctx, page, limit)
	stocks, _ := args.Get(0).([]models.Stock)
	return stocks, args.Error(1)
}

func (m *MockBackend) Price(ctx context.Context, symbol string) (*models.Quote, error) {
	args := m.Called(ctx, symbol)
	quote, _ := args.Get(0).(*models.Quote)
	return quote, args.Error(1)
}

func (m *MockBackend) History(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	args := m.Called(ctx, symbol)
	points, _ := args.Get(0).([]models.PricePoint)
	return points, args.Error(1)
}

func (m *MockBackend) PlaceOrder(ctx context.Context, side models.Side, req api.OrderRequest) (*models.Order, error) {
	args := m.Called(ctx, side, req)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *MockBackend) MyOrders(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]models.Order)
	return orders, args.Error(1)
}

func (m *MockBackend) CancelOrder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBackend) ExecuteOrder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBackend) OrderLogs(ctx context.Context, id string) ([]models.OrderLog, error) {
	args := m.Called(ctx, id)
	logs, _ := args.Get(0).([]models.OrderLog)
	return logs, args.Error(1)
}
