package sandbox

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type userJSON struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type orderJSON struct {
	ID        string    `json:"_id"`
	Symbol    string    `json:"stockSymbol"`
	Type      string    `json:"type"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type holdingJSON struct {
	Symbol       string   `json:"stockSymbol"`
	Quantity     float64  `json:"quantity"`
	AvgPrice     float64  `json:"avgPrice"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
}

type signUpBody struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type amountBody struct {
	Amount decimal.Decimal `json:"amount"`
}

type orderBody struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func toUser(a *account) userJSON {
	return userJSON{ID: a.id, Username: a.username, Email: a.email}
}

func toOrder(o *order) orderJSON {
	return orderJSON{
		ID:        o.id,
		Symbol:    o.symbol,
		Type:      o.side,
		Quantity:  o.quantity.InexactFloat64(),
		Price:     o.price.InexactFloat64(),
		Status:    o.status,
		CreatedAt: o.createdAt,
	}
}

func currentAccount(c *gin.Context) *account {
	return c.MustGet(accountKey).(*account)
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, maxAge, "/", "", false, true)
}

func (s *Server) signUp(c *gin.Context) {
	var body signUpBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, "Username, email and password are required")
		return
	}

	s.mu.Lock()
	acct, token, err := s.ledger.register(strings.TrimSpace(body.Username), body.Email, body.Password)
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"message": err.Error(), "fields": gin.H{"email": err.Error()}})
		return
	}

	s.logger.Info("Registered account", zap.String("email", acct.email))
	setSessionCookie(c, token, 86400)
	c.JSON(http.StatusCreated, gin.H{"message": "Account created", "token": token, "user": toUser(acct)})
}

func (s *Server) login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	s.mu.Lock()
	acct, token, err := s.ledger.login(body.Email, body.Password)
	s.mu.Unlock()
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	setSessionCookie(c, token, 86400)
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUser(acct)})
}

func (s *Server) logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		s.mu.Lock()
		s.ledger.logout(token)
		s.mu.Unlock()
	}
	setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": toUser(currentAccount(c))})
}

func (s *Server) wallet(c *gin.Context) {
	acct := currentAccount(c)
	s.mu.Lock()
	balance := acct.balance
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"wallet": gin.H{"balance": balance.InexactFloat64()}})
}

func (s *Server) deposit(c *gin.Context) {
	var body amountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, ErrAmount.Error())
		return
	}

	acct := currentAccount(c)
	s.mu.Lock()
	err := s.ledger.deposit(acct, body.Amount)
	balance := acct.balance
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "fields": gin.H{"amount": err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Funds added", "wallet": gin.H{"balance": balance.InexactFloat64()}})
}

func (s *Server) stocks(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	s.mu.Lock()
	all := s.ledger.sortedListings()
	out := make([]gin.H, 0, limit)
	start := (page - 1) * limit
	for i := start; i < len(all) && i < start+limit; i++ {
		out = append(out, gin.H{
			"symbol":      all[i].symbol,
			"description": all[i].description,
			"price":       all[i].price.InexactFloat64(),
		})
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"stocks": out, "page": page, "total": len(all)})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func (s *Server) price(c *gin.Context) {
	s.mu.Lock()
	l, ok := s.ledger.listing(c.Param("symbol"))
	var price decimal.Decimal
	if ok {
		price = l.price
	}
	s.mu.Unlock()
	if !ok {
		abort(c, http.StatusNotFound, ErrUnknownSymbol.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": l.symbol, "currentPrice": price.InexactFloat64()})
}

// history synthesizes a deterministic minute series ending at the current price.
func (s *Server) history(c *gin.Context) {
	s.mu.Lock()
	l, ok := s.ledger.listing(c.Param("symbol"))
	var price decimal.Decimal
	if ok {
		price = l.price
	}
	now := s.ledger.now()
	s.mu.Unlock()
	if !ok {
		abort(c, http.StatusNotFound, ErrUnknownSymbol.Error())
		return
	}

	const points = 20
	step := price.Div(decimal.NewFromInt(400))
	out := make([]gin.H, 0, points)
	for i := points - 1; i >= 0; i-- {
		wobble := decimal.NewFromInt(int64(i%5 - 2)).Mul(step)
		out = append(out, gin.H{
			"time":  now.Add(-time.Duration(i) * time.Minute).Format("15:04"),
			"price": price.Add(wobble).Round(2).InexactFloat64(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (s *Server) portfolio(c *gin.Context) {
	acct := currentAccount(c)
	s.mu.Lock()
	holdings := make([]holdingJSON, 0, len(acct.holdings))
	for _, l := range s.ledger.sortedListings() {
		p, ok := acct.holdings[l.symbol]
		if !ok {
			continue
		}
		h := holdingJSON{
			Symbol:   l.symbol,
			Quantity: p.quantity.InexactFloat64(),
			AvgPrice: p.avgPrice.InexactFloat64(),
		}
		if !s.cfg.BarePortfolio {
			price := l.price.InexactFloat64()
			h.CurrentPrice = &price
		}
		holdings = append(holdings, h)
	}
	realized := acct.realized
	unrealized := s.ledger.unrealized(acct)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"holding":            holdings,
		"totalRealizedPnl":   realized.InexactFloat64(),
		"totalUnrealizedPnl": unrealized.InexactFloat64(),
	})
}

func (s *Server) allocation(c *gin.Context) {
	acct := currentAccount(c)
	s.mu.Lock()
	out := []gin.H{{"name": "Cash", "value": acct.balance.InexactFloat64()}}
	for _, l := range s.ledger.sortedListings() {
		if p, ok := acct.holdings[l.symbol]; ok {
			out = append(out, gin.H{"name": l.symbol, "value": p.quantity.Mul(l.price).InexactFloat64()})
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"allocation": out})
}

// orderFieldErrors names the request field behind a placement failure.
var orderFieldErrors = map[error]string{
	ErrSymbolRequired:     "symbol",
	ErrUnknownSymbol:      "symbol",
	ErrQuantity:           "quantity",
	ErrPrice:              "price",
	ErrInsufficientShares: "quantity",
}

func (s *Server) placeOrder(side string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body orderBody
		if err := c.ShouldBindJSON(&body); err != nil {
			abort(c, http.StatusBadRequest, "Invalid order payload")
			return
		}

		acct := currentAccount(c)
		s.mu.Lock()
		if !s.allowOrder(acct.id) {
			s.mu.Unlock()
			s.logger.Warn("Order rate limit hit", zap.String("account", acct.id))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":    "Too many orders, slow down",
				"retryAfter": s.retryAfter(),
			})
			return
		}
		o, err := s.ledger.place(acct, side, body.Symbol, body.Quantity, body.Price)
		var placed orderJSON
		if err == nil {
			placed = toOrder(o)
		}
		s.mu.Unlock()

		if err != nil {
			resp := gin.H{"message": err.Error()}
			if field, ok := orderFieldErrors[err]; ok {
				resp["fields"] = gin.H{field: err.Error()}
			}
			c.JSON(http.StatusBadRequest, resp)
			return
		}

		s.logger.Info("Order placed",
			zap.String("id", placed.ID),
			zap.String("side", side),
			zap.String("symbol", placed.Symbol),
			zap.String("request_id", c.GetHeader("X-Request-ID")))
		c.JSON(http.StatusCreated, gin.H{"message": "Order placed", "order": placed})
	}
}

func (s *Server) myOrders(c *gin.Context) {
	acct := currentAccount(c)
	s.mu.Lock()
	out := make([]orderJSON, 0, len(acct.orders))
	for i := len(acct.orders) - 1; i >= 0; i-- {
		out = append(out, toOrder(acct.orders[i]))
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (s *Server) cancelOrder(c *gin.Context) {
	s.changeOrder(c, s.ledger.cancel, "Order cancelled")
}

func (s *Server) executeOrder(c *gin.Context) {
	s.changeOrder(c, s.ledger.execute, "Order executed")
}

func (s *Server) changeOrder(c *gin.Context, change func(*account, string) (*order, error), message string) {
	acct := currentAccount(c)
	s.mu.Lock()
	o, err := change(acct, c.Param("id"))
	var changed orderJSON
	if err == nil {
		changed = toOrder(o)
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, ErrOrderNotFound):
		abort(c, http.StatusNotFound, err.Error())
	case err != nil:
		abort(c, http.StatusBadRequest, err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"message": message, "order": changed})
	}
}

func (s *Server) orderLogs(c *gin.Context) {
	acct := currentAccount(c)
	s.mu.Lock()
	o, ok := s.ledger.orders[c.Param("id")]
	var logs []gin.H
	if ok && o.owner == acct.id {
		for _, l := range o.logs {
			logs = append(logs, gin.H{"event": l.event, "message": l.message, "createdAt": l.at.Format(time.RFC3339)})
		}
	}
	s.mu.Unlock()

	if !ok || o.owner != acct.id {
		abort(c, http.StatusNotFound, ErrOrderNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
