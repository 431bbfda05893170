// Package session tracks whether the terminal holds a valid backend session
// and reacts to unauthorized signals from the API client.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"trading-terminal-go/internal/api"
	"trading-terminal-go/internal/metrics"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/signals"
)

// Locations the store navigates to.
const (
	PathDashboard = "/dashboard"
	PathAuth      = "/auth"
	PathLogin     = "/auth/login"
	PathOldLogin  = "/login"
)

// IsPublic reports whether path is reachable without a session.
func IsPublic(path string) bool {
	switch strings.TrimRight(path, "/") {
	case PathAuth, PathLogin, PathOldLogin:
		return true
	}
	return false
}

// State is the session lifecycle.
type State int

const (
	Probing State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Session is a snapshot of the store.
type Session struct {
	State         State
	Authenticated bool
	Loading       bool
	Identity      *models.Identity
}

// Navigator owns the current location.
type Navigator interface {
	Current() string
	Replace(path string)
}

// AuthBackend is the part of the backend the store talks to.
type AuthBackend interface {
	Me(ctx context.Context) (*models.Identity, error)
	Login(ctx context.Context, req api.LoginRequest) error
	SignUp(ctx context.Context, req api.SignUpRequest) error
	Logout(ctx context.Context) error
	Forget() error
}

// ErrInvalidCredentials matches any CredentialErrors.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialErrors maps a login or signup input to its problem.
type CredentialErrors map[string]string

func (ce CredentialErrors) Error() string {
	keys := make([]string, 0, len(ce))
	for k := range ce {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+ce[k])
	}
	return strings.Join(parts, "; ")
}

func (ce CredentialErrors) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// Store holds the session state machine.
type Store struct {
	backend AuthBackend
	nav     Navigator
	logger  *zap.Logger

	probe sync.Once

	mu        sync.Mutex
	state     State
	identity  *models.Identity
	resets    []func()
	listeners []func(Session)
}

// NewStore creates a store in the Probing state.
func NewStore(backend AuthBackend, nav Navigator, logger *zap.Logger) *Store {
	return &Store{
		backend: backend,
		nav:     nav,
		logger:  logger.Named("session"),
		state:   Probing,
	}
}

// OnReset registers a hook run before every navigation the store makes on
// a session change. Hooks must be idempotent.
func (s *Store) OnReset(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, hook)
}

// OnChange registers a listener for state transitions.
func (s *Store) OnChange(listener func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Session returns the current snapshot.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() Session {
	return Session{
		State:         s.state,
		Authenticated: s.state == Authenticated,
		Loading:       s.state == Probing,
		Identity:      s.identity,
	}
}

// Start issues the session probe. Only the first call probes; later calls
// return the current snapshot.
func (s *Store) Start(ctx context.Context) Session {
	s.probe.Do(func() {
		identity, err := s.backend.Me(ctx)
		if err != nil {
			if api.IsStatus(err, http.StatusUnauthorized) {
				s.logger.Debug("No active session")
			} else {
				s.logger.Warn("Session probe failed", zap.Error(err))
			}
			s.settle(Unauthenticated, nil)
			return
		}
		s.logger.Debug("Session restored", zap.String("username", identity.Username))
		s.settle(Authenticated, identity)
	})
	return s.Session()
}

// Login signs in and navigates to the dashboard.
func (s *Store) Login(ctx context.Context, email, password string) error {
	req := api.LoginRequest{Email: strings.TrimSpace(email), Password: strings.TrimSpace(password)}
	if errs := validateLogin(req); errs != nil {
		return errs
	}
	if err := s.backend.Login(ctx, req); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	s.signedIn()
	return nil
}

// Signup registers and navigates to the dashboard.
func (s *Store) Signup(ctx context.Context, username, email, password string) error {
	req := api.SignUpRequest{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: strings.TrimSpace(password),
	}
	errs := validateLogin(api.LoginRequest{Email: req.Email, Password: req.Password})
	if len(req.Username) < 3 {
		if errs == nil {
			errs = CredentialErrors{}
		}
		errs["username"] = "Username must be at least 3 characters"
	}
	if errs != nil {
		return errs
	}
	if err := s.backend.SignUp(ctx, req); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}
	s.signedIn()
	return nil
}

func (s *Store) signedIn() {
	s.reset()
	s.transition(Authenticated, nil)
	s.nav.Replace(PathDashboard)
}

// Logout ends the session. The remote call is best-effort; local state is
// always cleared.
func (s *Store) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn("Logout request failed", zap.Error(err))
	}
	s.clear()
	s.nav.Replace(PathLogin)
}

// Handle consumes signals from the API client. Unauthorized clears the
// session and, unless already on a public path, navigates to sign in.
func (s *Store) Handle(sig signals.Signal) {
	if sig.Kind != signals.Unauthorized {
		return
	}
	s.logger.Info("Session rejected by backend", zap.String("message", sig.Message), zap.String("path", sig.Path))

	s.clear()
	if !IsPublic(s.nav.Current()) {
		s.nav.Replace(PathAuth)
	}
}

// Subscribe attaches Handle to bus.
func (s *Store) Subscribe(bus *signals.Bus) (unsubscribe func()) {
	return bus.Subscribe(s.Handle)
}

func (s *Store) clear() {
	if err := s.backend.Forget(); err != nil {
		s.logger.Warn("Could not clear stored credentials", zap.Error(err))
	}
	s.reset()
	s.transition(Unauthenticated, nil)
}

func (s *Store) reset() {
	s.mu.Lock()
	hooks := append([]func(){}, s.resets...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// settle applies the probe result unless a login, logout or signal has
// already moved the store out of Probing.
func (s *Store) settle(state State, identity *models.Identity) {
	s.mu.Lock()
	probing := s.state == Probing
	s.mu.Unlock()
	if !probing {
		s.logger.Debug("Ignoring late probe result", zap.Stringer("state", state))
		return
	}
	s.transition(state, identity)
}

func (s *Store) transition(state State, identity *models.Identity) {
	s.mu.Lock()
	s.state = state
	s.identity = identity
	snap := s.snapshot()
	listeners := append([]func(Session){}, s.listeners...)
	s.mu.Unlock()

	if state == Authenticated {
		metrics.SessionState.Set(1)
	} else {
		metrics.SessionState.Set(0)
	}
	for _, l := range listeners {
		l(snap)
	}
}

func validateLogin(req api.LoginRequest) CredentialErrors {
	errs := CredentialErrors{}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		errs["email"] = "Enter a valid email"
	}
	if len(req.Password) < 6 {
		errs["password"] = "Password must be at least 6 characters"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
