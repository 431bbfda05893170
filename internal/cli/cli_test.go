package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trading-terminal-go/internal/config"
	"trading-terminal-go/internal/sandbox"
	"trading-terminal-go/internal/signals"
	"trading-terminal-go/internal/views"
)

type terminal struct {
	t   *testing.T
	dir string
	sb  *sandbox.Server

	// orders counts order placements that reached the backend.
	orders atomic.Int32
}

type result struct {
	out    string
	errOut string
	code   int
}

// newTerminal points the terminal at a fresh sandbox backend and a
// temporary local store.
func newTerminal(t *testing.T, cfg config.Sandbox) *terminal {
	if cfg.StartingCash == 0 {
		cfg.StartingCash = 100000
	}
	sb := sandbox.NewServer(cfg, zap.NewNop())
	term := &terminal{t: t, dir: t.TempDir(), sb: sb}
	handler := sb.Handler()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && (r.URL.Path == "/api/order/buy" || r.URL.Path == "/api/order/sell") {
			term.orders.Add(1)
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	t.Setenv("BACKEND_BASE_URL", server.URL+"/api")
	t.Setenv("DATABASE_DSN", filepath.Join(term.dir, "terminal.db"))
	t.Setenv("LOGGER_LEVEL", "off")
	return term
}

func (term *terminal) run(args ...string) result {
	term.t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), append([]string{"--config", term.dir}, args...), &out, &errOut)
	return result{out: out.String(), errOut: errOut.String(), code: code}
}

func (term *terminal) signUp() {
	term.t.Helper()
	res := term.run("signup", "--username", "trader", "--email", "trader@example.com", "--password", "secret1")
	require.Equal(term.t, 0, res.code, res.errOut)
}

// orderID pulls the id out of "Placed BUY order <id>: ...".
func orderID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Placed ") {
			fields := strings.Fields(line)
			require.GreaterOrEqual(t, len(fields), 4)
			return strings.TrimSuffix(fields[3], ":")
		}
	}
	t.Fatalf("no placement line in %q", out)
	return ""
}

func TestProtectedCommandsRequireSignIn(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})

	for _, args := range [][]string{
		{"wallet"},
		{"orders"},
		{"portfolio"},
		{"stocks"},
		{"price", "AAPL"},
		{"dashboard", "--once"},
	} {
		res := term.run(args...)
		assert.Equal(t, 1, res.code, args)
		assert.Contains(t, res.errOut, "Sign in required", args)
		assert.NotContains(t, res.errOut, "Error:", args)
	}
}

func TestSessionLifecycle(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})

	res := term.run("whoami")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.out, "Not signed in.")

	res = term.run("signup", "--username", "trader", "--email", "trader@example.com", "--password", "secret1")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "/dashboard")

	res = term.run("whoami")
	assert.Contains(t, res.out, "Signed in as trader")

	res = term.run("logout")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.out, "Signed out.")

	res = term.run("wallet")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "Sign in required")

	res = term.run("login", "--email", "trader@example.com", "--password", "wrong-password")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "Invalid email or password")

	res = term.run("login", "--email", "not-an-email", "--password", "x")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "email: Enter a valid email")
	assert.Contains(t, res.errOut, "password: Password must be at least 6 characters")

	res = term.run("login", "--email", "trader@example.com", "--password", "secret1")
	require.Equal(t, 0, res.code, res.errOut)
	res = term.run("wallet")
	assert.Equal(t, 0, res.code)
}

func TestTradingFlow(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})
	term.signUp()

	res := term.run("wallet")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "₹1,00,000.00")

	res = term.run("buy", "aapl", "10", "150")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "Estimated  ₹1,500.00")
	id := orderID(t, res.out)

	res = term.run("orders")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.out, "AAPL")
	assert.Contains(t, res.out, "OPEN")

	res = term.run("sell", "AAPL", "5", "160", "--dry-run")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.out, "Insufficient holdings.")

	res = term.run("execute", id)
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "Executed order "+id)

	res = term.run("portfolio")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "AAPL")
	assert.Contains(t, res.out, "Cash")

	res = term.run("portfolio", "--backend-allocation")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "AAPL")

	res = term.run("sell", "AAPL", "20", "160")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "order submission is disabled")

	res = term.run("sell", "AAPL", "5", "160")
	require.Equal(t, 0, res.code, res.errOut)
	sellID := orderID(t, res.out)

	res = term.run("cancel", sellID)
	require.Equal(t, 0, res.code, res.errOut)

	res = term.run("logs", sellID)
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "CANCELLED")

	res = term.run("history")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, id)
	assert.Contains(t, res.out, sellID)

	res = term.run("dashboard", "--once")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "Account value")
	assert.Contains(t, res.out, "Recent orders (0 open)")
}

func TestOrderRejectedByBackend(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})
	term.signUp()

	res := term.run("buy", "ZZZZ", "1", "10")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "symbol: Invalid symbol")

	res = term.run("buy", "AAPL", "abc", "10")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "quantity")
}

func TestOrderRateLimited(t *testing.T) {
	term := newTerminal(t, config.Sandbox{OrdersPerMin: 1, RetryAfterSecs: 30})
	term.signUp()

	res := term.run("buy", "TSLA", "1", "250")
	require.Equal(t, 0, res.code, res.errOut)

	res = term.run("buy", "TSLA", "1", "250")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "Cool down: 30s")
	require.EqualValues(t, 2, term.orders.Load())

	res = term.run("buy", "TSLA", "1", "250")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.out, "Cool down: 30s")
	assert.Contains(t, res.errOut, "cooling down")
	assert.EqualValues(t, 2, term.orders.Load(), "no request while cooling down")

	res = term.run("sell", "TSLA", "1", "250", "--dry-run")
	require.Equal(t, 0, res.code, res.errOut)
	assert.NotContains(t, res.out, "Cool down")
}

func TestOrderCooldownExpires(t *testing.T) {
	term := newTerminal(t, config.Sandbox{OrdersPerMin: 1, RetryAfterSecs: 1})
	term.signUp()

	require.Equal(t, 0, term.run("buy", "TSLA", "1", "250").code)
	res := term.run("buy", "TSLA", "1", "250")
	assert.Contains(t, res.errOut, "Cool down: 1s")
	require.EqualValues(t, 2, term.orders.Load())

	time.Sleep(1100 * time.Millisecond)
	term.run("buy", "TSLA", "1", "250")
	assert.EqualValues(t, 3, term.orders.Load())
}

func TestOrderCooldownClearedBySignOut(t *testing.T) {
	term := newTerminal(t, config.Sandbox{OrdersPerMin: 1, RetryAfterSecs: 30})
	term.signUp()

	require.Equal(t, 0, term.run("buy", "TSLA", "1", "250").code)
	term.run("buy", "TSLA", "1", "250")
	require.EqualValues(t, 2, term.orders.Load())

	require.Equal(t, 0, term.run("logout").code)
	res := term.run("login", "--email", "trader@example.com", "--password", "secret1")
	require.Equal(t, 0, res.code, res.errOut)

	res = term.run("buy", "TSLA", "1", "250", "--dry-run")
	require.Equal(t, 0, res.code, res.errOut)
	assert.NotContains(t, res.out, "Cool down")
}

func TestDeposit(t *testing.T) {
	term := newTerminal(t, config.Sandbox{StartingCash: 1000})
	term.signUp()

	res := term.run("deposit", "0")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.errOut, "amount must be greater than 0")

	res = term.run("deposit", "ten")
	assert.Equal(t, 1, res.code)

	res = term.run("deposit", "500")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "Deposited ₹500.00")
	assert.Contains(t, res.out, "₹1,500.00")
}

func TestMarketCommands(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})
	term.signUp()

	res := term.run("stocks", "--search", "tesla")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "TSLA")
	assert.NotContains(t, res.out, "AAPL")
	assert.Contains(t, res.out, "Page 1")

	res = term.run("price", "tsla", "--history")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "₹248.75")
	assert.Contains(t, res.out, "low")
}

func TestDashboardPolls(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})
	term.signUp()
	t.Setenv("POLLING_WALLET", "20ms")
	t.Setenv("POLLING_ORDERS", "20ms")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out, errOut bytes.Buffer
	code := Execute(ctx, []string{"--config", term.dir, "dashboard"}, &out, &errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), clearScreen)
	assert.Contains(t, out.String(), "Account value")
}

func TestPortfolioQuotesBareHoldings(t *testing.T) {
	term := newTerminal(t, config.Sandbox{BarePortfolio: true})
	term.signUp()

	res := term.run("buy", "TSLA", "2", "250")
	require.Equal(t, 0, res.code, res.errOut)
	res = term.run("execute", orderID(t, res.out))
	require.Equal(t, 0, res.code, res.errOut)
	require.NoError(t, term.sb.SetPrice("TSLA", decimal.RequireFromString("260")))

	res = term.run("portfolio")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "₹260.00")

	res = term.run("dashboard", "--once")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "₹520.00", "holdings valued at the quoted price")
}

func TestPriceWatch(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})
	term.signUp()
	t.Setenv("POLLING_MARKET_PRICE", "20ms")

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = term.sb.SetPrice("TSLA", decimal.RequireFromString("260"))
	}()

	var out, errOut bytes.Buffer
	code := Execute(ctx, []string{"--config", term.dir, "price", "tsla", "--watch"}, &out, &errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Greater(t, strings.Count(out.String(), clearScreen), 2)
	assert.Contains(t, out.String(), "₹248.75")
	assert.Contains(t, out.String(), "₹260.00")
}

func TestStocksWatch(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})
	term.signUp()
	t.Setenv("POLLING_STOCKS", "20ms")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out, errOut bytes.Buffer
	code := Execute(ctx, []string{"--config", term.dir, "stocks", "--watch"}, &out, &errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Greater(t, strings.Count(out.String(), clearScreen), 1)
	assert.Contains(t, out.String(), "Page 1")
}

func TestListen(t *testing.T) {
	bus := signals.NewBus()
	a := NewApp(&bytes.Buffer{}, &bytes.Buffer{})
	a.notices = views.NewNotices()
	a.notices.Subscribe(bus)
	bus.Emit(signals.Signal{Kind: signals.ServiceUnavailable})

	var redraws, quits int
	a.listen(strings.NewReader("x\n D \nq\nd\n"), func() { redraws++ }, func() { quits++ })

	_, shown := a.notices.Banner()
	assert.False(t, shown, "d dismisses the banner")
	assert.Equal(t, 1, redraws)
	assert.Equal(t, 1, quits, "input after q is not read")
}

func TestOfflineCommands(t *testing.T) {
	term := newTerminal(t, config.Sandbox{})

	res := term.run("version")
	require.Equal(t, 0, res.code)
	assert.Contains(t, res.out, "trading-terminal "+Version)

	res = term.run("config", "show")
	require.Equal(t, 0, res.code, res.errOut)
	assert.Contains(t, res.out, "base_url:")
	assert.Contains(t, res.out, "/api")
}
