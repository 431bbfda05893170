package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-terminal-go/internal/models"
)

func TestMyOrders(t *testing.T) {
	t.Run("Envelope", func(t *testing.T) {
		c, _, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/order/my", r.URL.Path)
			status(http.StatusOK, `{"orders":[{"_id":"o1","stockSymbol":"AAPL","type":"BUY","quantity":2,"price":100,"status":"OPEN"}]}`)(w, r)
		}))

		orders, err := c.MyOrders(context.Background())
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "o1", orders[0].ID)
		assert.Equal(t, models.SideBuy, orders[0].Side)
	})

	t.Run("BareArray", func(t *testing.T) {
		c, _, _ := setupTestServer(t, status(http.StatusOK, `[{"id":"o2","symbol":"TSLA","side":"SELL"}]`))
		orders, err := c.MyOrders(context.Background())
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "TSLA", orders[0].Symbol)
	})

	t.Run("MissingKeyIsEmpty", func(t *testing.T) {
		c, _, _ := setupTestServer(t, status(http.StatusOK, `{}`))
		orders, err := c.MyOrders(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, orders)
		assert.Empty(t, orders)
	})
}

func TestPlaceOrder(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	c, _, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		status(http.StatusCreated, `{"message":"Order placed","order":{"_id":"o9","stockSymbol":"AAPL","type":"SELL","quantity":3,"price":"10.5","status":"OPEN"}}`)(w, r)
	}))

	order, err := c.PlaceOrder(context.Background(), models.SideSell, OrderRequest{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(3),
		Price:    decimal.RequireFromString("10.5"),
	})

	require.NoError(t, err)
	assert.Equal(t, "/api/order/sell", gotPath)
	assert.Equal(t, "AAPL", gotBody["symbol"])
	assert.Equal(t, "o9", order.ID)
	assert.True(t, order.Price.Equal(decimal.RequireFromString("10.5")))
}

func TestPlaceOrder_ResponseWithoutOrderKeepsRequest(t *testing.T) {
	c, _, _ := setupTestServer(t, status(http.StatusOK, `{"message":"ok"}`))

	order, err := c.PlaceOrder(context.Background(), models.SideBuy, OrderRequest{Symbol: "AAPL", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(5)})

	require.NoError(t, err)
	assert.Equal(t, "AAPL", order.Symbol)
	assert.Equal(t, models.StatusOpen, order.Status)
}

func TestStocksAndPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/market/stocks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		status(http.StatusOK, `{"stocks":[{"symbol":"AAPL","description":"Apple","price":189.5}]}`)(w, r)
	})
	mux.HandleFunc("/api/market/price/AAPL", func(w http.ResponseWriter, r *http.Request) {
		status(http.StatusOK, `{"currentPrice":190.25}`)(w, r)
	})
	c, _, _ := setupTestServer(t, mux)

	stocks, err := c.Stocks(context.Background(), 2, 20)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "Apple", stocks[0].Description)

	quote, err := c.Price(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "190.25", quote.CurrentPrice.String())
}

func TestOrderActions(t *testing.T) {
	var calls []string
	c, _, _ := setupTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		status(http.StatusOK, `{}`)(w, r)
	}))

	require.NoError(t, c.CancelOrder(context.Background(), "o1"))
	require.NoError(t, c.ExecuteOrder(context.Background(), "o1"))
	require.NoError(t, c.Deposit(context.Background(), decimal.NewFromInt(500)))
	require.NoError(t, c.Logout(context.Background()))

	assert.Equal(t, []string{
		"DELETE /api/order/o1",
		"POST /api/order/execute/o1",
		"POST /api/user/wallet/add",
		"POST /api/auth/logout",
	}, calls)
}

func TestAPIErrorFields(t *testing.T) {
	c, _, _ := setupTestServer(t, status(http.StatusBadRequest, `{"message":"Validation failed","fields":{"price":"Price must be positive"}}`))

	_, err := c.PlaceOrder(context.Background(), models.SideBuy, OrderRequest{})

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Price must be positive", apiErr.Fields["price"])
	assert.Contains(t, err.Error(), "400 Bad Request: Validation failed")
}
