package guard

import (
	"strings"
	"sync"

	"trading-terminal-go/internal/session"
)

// Routes known to the terminal.
const (
	RouteDashboard = session.PathDashboard
	RouteAuth      = session.PathAuth
	RouteMarket    = "/market"
	RouteStocks    = "/market/all"
	RouteOrders    = "/orders"
	RoutePortfolio = "/portfolio"
)

var protected = map[string]bool{
	RouteDashboard: true,
	RouteMarket:    true,
	RouteStocks:    true,
	RouteOrders:    true,
	RoutePortfolio: true,
}

// Protected reports whether path needs an authenticated session.
func Protected(path string) bool {
	return protected[Canonical(path)]
}

// Canonical maps a requested location onto a known route: the root goes to
// the dashboard, the sign-in aliases go to /auth and anything unknown goes
// to the dashboard.
func Canonical(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	if path == "" || path == "/" {
		return RouteDashboard
	}
	if session.IsPublic(path) {
		return RouteAuth
	}
	if protected[path] {
		return path
	}
	return RouteDashboard
}

// Router owns the current location.
type Router struct {
	mu        sync.Mutex
	current   string
	history   []string
	listeners []func(to string)
}

var _ session.Navigator = (*Router)(nil)

// NewRouter starts at path.
func NewRouter(path string) *Router {
	return &Router{current: Canonical(path)}
}

// Current returns the current location.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Replace moves to path, replacing the current location.
func (r *Router) Replace(path string) {
	to := Canonical(path)

	r.mu.Lock()
	r.current = to
	r.history = append(r.history, path)
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l(to)
	}
}

// History lists every location passed to Replace, as requested.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// OnNavigate registers a listener called after each Replace.
func (r *Router) OnNavigate(l func(to string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}
