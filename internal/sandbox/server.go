package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trading-terminal-go/internal/config"
)

// CookieName is the session cookie set on sign-in.
const CookieName = "token"

const accountKey = "account"

// Server is an in-memory Trading Core backend for local development and
// integration tests. It serves every endpoint under /api.
type Server struct {
	cfg    config.Sandbox
	logger *zap.Logger
	engine *gin.Engine
	server *http.Server

	mu       sync.Mutex
	ledger   *ledger
	limiters map[string]*rate.Limiter
	outage   bool
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.ledger.now = now }
}

// NewServer creates a sandbox backend. Nothing listens until Start.
func NewServer(cfg config.Sandbox, logger *zap.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("sandbox-server"),
		ledger:   newLedger(decimal.NewFromFloat(cfg.StartingCash), time.Now),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger(), s.outageGate())
	s.routes(s.engine.Group("/api"))

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.engine,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting sandbox server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Sandbox server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping sandbox server...")
	return s.server.Shutdown(ctx)
}

// SetOutage makes every request fail with 500 until cleared.
func (s *Server) SetOutage(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outage = down
}

// SetPrice moves the quoted price of a listed symbol.
func (s *Server) SetPrice(symbol string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledger.listing(symbol)
	if !ok {
		return ErrUnknownSymbol
	}
	l.price = price
	return nil
}

func (s *Server) routes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	auth.POST("/sign-up", s.signUp)
	auth.POST("/login", s.login)
	auth.POST("/logout", s.logout)
	auth.GET("/me", s.authenticated(), s.me)

	user := api.Group("/user", s.authenticated())
	user.GET("/wallet", s.wallet)
	user.POST("/wallet/add", s.deposit)

	market := api.Group("/market", s.authenticated())
	market.GET("/stocks", s.stocks)
	market.GET("/price/:symbol", s.price)
	market.GET("/history/:symbol", s.history)

	portfolio := api.Group("/portfolio", s.authenticated())
	portfolio.GET("", s.portfolio)
	portfolio.GET("/allocation", s.allocation)

	order := api.Group("/order", s.authenticated())
	order.POST("/buy", s.placeOrder("BUY"))
	order.POST("/sell", s.placeOrder("SELL"))
	order.GET("/my", s.myOrders)
	order.DELETE("/:id", s.cancelOrder)
	order.POST("/execute/:id", s.executeOrder)
	order.GET("/:id/logs", s.orderLogs)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) outageGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		down := s.outage
		s.mu.Unlock()
		if down {
			abort(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		c.Next()
	}
}

// authenticated resolves the session from the bearer token or the cookie.
func (s *Server) authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		s.mu.Lock()
		acct, ok := s.ledger.lookup(token)
		s.mu.Unlock()
		if token == "" || !ok {
			abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		c.Set(accountKey, acct)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	token, _ := c.Cookie(CookieName)
	return token
}

// allowOrder applies the per-account order rate limit.
func (s *Server) allowOrder(accountID string) bool {
	if s.cfg.OrdersPerMin <= 0 {
		return true
	}
	lim, ok := s.limiters[accountID]
	if !ok {
		burst := int(s.cfg.OrdersPerMin)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(s.cfg.OrdersPerMin/60), burst)
		s.limiters[accountID] = lim
	}
	return lim.Allow()
}

func (s *Server) retryAfter() int {
	if s.cfg.RetryAfterSecs > 0 {
		return s.cfg.RetryAfterSecs
	}
	return 30
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
