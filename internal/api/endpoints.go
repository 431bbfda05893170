package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trading-terminal-go/internal/models"
)

// Backend REST paths, relative to the configured base URL.
const (
	PathLogin      = "/auth/login"
	PathSignUp     = "/auth/sign-up"
	PathMe         = "/auth/me"
	PathLogout     = "/auth/logout"
	PathWallet     = "/user/wallet"
	PathWalletAdd  = "/user/wallet/add"
	PathStocks     = "/market/stocks"
	PathPortfolio  = "/portfolio"
	PathAllocation = "/portfolio/allocation"
	PathBuy        = "/order/buy"
	PathSell       = "/order/sell"
	PathMyOrders   = "/order/my"
)

// PricePath is the latest-price endpoint for symbol.
func PricePath(symbol string) string {
	return "/market/price/" + url.PathEscape(symbol)
}

// HistoryPath is the price-history endpoint for symbol.
func HistoryPath(symbol string) string {
	return "/market/history/" + url.PathEscape(symbol)
}

// CancelPath is the DELETE endpoint for an order.
func CancelPath(id string) string {
	return "/order/" + url.PathEscape(id)
}

// ExecutePath force-executes an open order.
func ExecutePath(id string) string {
	return "/order/execute/" + url.PathEscape(id)
}

// LogsPath lists the audit trail of an order.
func LogsPath(id string) string {
	return "/order/" + url.PathEscape(id) + "/logs"
}

// Backend is the typed surface of the Trading Core API.
type Backend interface {
	Me(ctx context.Context) (*models.Identity, error)
	Login(ctx context.Context, req LoginRequest) error
	SignUp(ctx context.Context, req SignUpRequest) error
	Logout(ctx context.Context) error
	Forget() error

	Wallet(ctx context.Context) (*models.Wallet, error)
	Deposit(ctx context.Context, amount decimal.Decimal) error
	Portfolio(ctx context.Context) (*models.Portfolio, error)
	Allocation(ctx context.Context) ([]models.AllocationSlice, error)

	Stocks(ctx context.Context, page, limit int) ([]models.Stock, error)
	Price(ctx context.Context, symbol string) (*models.Quote, error)
	History(ctx context.Context, symbol string) ([]models.PricePoint, error)

	PlaceOrder(ctx context.Context, side models.Side, req OrderRequest) (*models.Order, error)
	MyOrders(ctx context.Context) ([]models.Order, error)
	CancelOrder(ctx context.Context, id string) error
	ExecuteOrder(ctx context.Context, id string) error
	OrderLogs(ctx context.Context, id string) ([]models.OrderLog, error)
}

// ensure Client implements the interface
var _ Backend = (*Client)(nil)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the body of POST /auth/sign-up.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OrderRequest is the body of POST /order/buy and /order/sell.
type OrderRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type authResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

// Me is the session probe.
func (c *Client) Me(ctx context.Context) (*models.Identity, error) {
	resp, err := c.doRequest(ctx, "GET", PathMe, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to probe session: %w", err)
	}

	var identity models.Identity
	if err := decodeEnvelope(resp.Body(), "user", &identity); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &identity, nil
}

// Login signs in and persists the returned credentials.
func (c *Client) Login(ctx context.Context, req LoginRequest) error {
	return c.authenticate(ctx, PathLogin, req)
}

// SignUp registers a user and persists the returned credentials.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) error {
	return c.authenticate(ctx, PathSignUp, req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) error {
	var auth authResponse
	if err := c.Post(ctx, path, body, &auth); err != nil {
		return err
	}

	token := auth.Token
	if token == "" {
		token = auth.AccessToken
	}
	if err := c.remember(token); err != nil {
		c.logger.Warn("Signed in but could not persist credentials", zap.Error(err))
	}
	return nil
}

// Logout ends the server-side session. Local credentials are left to Forget.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Post(ctx, PathLogout, nil, nil); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// Wallet returns the cash balance.
func (c *Client) Wallet(ctx context.Context) (*models.Wallet, error) {
	resp, err := c.doRequest(ctx, "GET", PathWallet, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	var wallet models.Wallet
	if err := decodeEnvelope(resp.Body(), "wallet", &wallet); err != nil {
		return nil, fmt.Errorf("failed to decode wallet: %w", err)
	}
	return &wallet, nil
}

// Deposit adds funds to the wallet.
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal) error {
	if err := c.Post(ctx, PathWalletAdd, depositRequest{Amount: amount}, nil); err != nil {
		return fmt.Errorf("failed to deposit: %w", err)
	}
	return nil
}

// Portfolio returns holdings and profit figures.
func (c *Client) Portfolio(ctx context.Context) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := c.Get(ctx, PathPortfolio, &portfolio); err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	if portfolio.Holdings == nil {
		portfolio.Holdings = []models.Holding{}
	}
	return &portfolio, nil
}

// Allocation returns the backend's allocation breakdown.
func (c *Client) Allocation(ctx context.Context) ([]models.AllocationSlice, error) {
	resp, err := c.doRequest(ctx, "GET", PathAllocation, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get allocation: %w", err)
	}
	var slices []models.AllocationSlice
	if err := decodeList(resp.Body(), "allocation", &slices); err != nil {
		return nil, fmt.Errorf("failed to decode allocation: %w", err)
	}
	return slices, nil
}

// Stocks returns one page of listed stocks.
func (c *Client) Stocks(ctx context.Context, page, limit int) ([]models.Stock, error) {
	path := fmt.Sprintf("%s?page=%d&limit=%d", PathStocks, page, limit)
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	var stocks []models.Stock
	if err := decodeList(resp.Body(), "stocks", &stocks); err != nil {
		return nil, fmt.Errorf("failed to decode stocks: %w", err)
	}
	return stocks, nil
}

// Price returns the latest quote for symbol.
func (c *Client) Price(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var quote models.Quote
	if err := c.Get(ctx, PricePath(symbol), &quote); err != nil {
		return nil, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}
	if quote.Symbol == "" {
		quote.Symbol = symbol
	}
	return &quote, nil
}

// History returns recent price points for symbol.
func (c *Client) History(ctx context.Context, symbol string) ([]models.PricePoint, error) {
	resp, err := c.doRequest(ctx, "GET", HistoryPath(strings.ToUpper(symbol)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history for %s: %w", symbol, err)
	}
	var points []models.PricePoint
	if err := decodeList(resp.Body(), "history", &points); err != nil {
		return nil, fmt.Errorf("failed to decode price history: %w", err)
	}
	return points, nil
}

// PlaceOrder submits a BUY or SELL order.
func (c *Client) PlaceOrder(ctx context.Context, side models.Side, req OrderRequest) (*models.Order, error) {
	path := PathBuy
	if side == models.SideSell {
		path = PathSell
	}

	resp, err := c.doRequest(ctx, "POST", path, req)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s order: %w", side, err)
	}

	order := models.Order{Symbol: req.Symbol, Side: side, Quantity: req.Quantity, Price: req.Price, Status: models.StatusOpen}
	var placed models.Order
	if err := decodeEnvelope(resp.Body(), "order", &placed); err != nil {
		c.logger.Debug("Order placed but response was not an order", zap.Error(err))
	} else if placed.ID != "" {
		order = placed
	}
	c.logger.Info("Successfully placed order", zap.Any("order", order))
	return &order, nil
}

// MyOrders lists the user's orders, newest first as returned by the backend.
func (c *Client) MyOrders(ctx context.Context) ([]models.Order, error) {
	resp, err := c.doRequest(ctx, "GET", PathMyOrders, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := []models.Order{}
	if err := decodeList(resp.Body(), "orders", &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, id string) error {
	if err := c.Delete(ctx, CancelPath(id), nil); err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", id, err)
	}
	return nil
}

// ExecuteOrder force-executes an open order.
func (c *Client) ExecuteOrder(ctx context.Context, id string) error {
	if err := c.Post(ctx, ExecutePath(id), nil, nil); err != nil {
		return fmt.Errorf("failed to execute order %s: %w", id, err)
	}
	return nil
}

// OrderLogs returns the audit trail of an order.
func (c *Client) OrderLogs(ctx context.Context, id string) ([]models.OrderLog, error) {
	resp, err := c.doRequest(ctx, "GET", LogsPath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for order %s: %w", id, err)
	}
	var logs []models.OrderLog
	if err := decodeList(resp.Body(), "logs", &logs); err != nil {
		return nil, fmt.Errorf("failed to decode order logs: %w", err)
	}
	return logs, nil
}

func decodeJSON(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeEnvelope decodes body[key] when body is an object carrying key,
// otherwise the whole body.
func decodeEnvelope(body []byte, key string, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err == nil {
			if raw, ok := env[key]; ok && string(raw) != "null" {
				return json.Unmarshal(raw, out)
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

// decodeList decodes a bare array or body[key]. An object without key
// leaves out untouched.
func decodeList(body []byte, key string, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	raw, ok := env[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}
