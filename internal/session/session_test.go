package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trading-terminal-go/internal/api"
	"trading-terminal-go/internal/api/apitest"
	"trading-terminal-go/internal/models"
	"trading-terminal-go/internal/signals"
)

// fakeNavigator records every Replace.
type fakeNavigator struct {
	current  string
	replaced []string
}

func (n *fakeNavigator) Current() string { return n.current }

func (n *fakeNavigator) Replace(path string) {
	n.current = path
	n.replaced = append(n.replaced, path)
}

func setupStore(current string) (*Store, *apitest.MockBackend, *fakeNavigator) {
	backend := new(apitest.MockBackend)
	nav := &fakeNavigator{current: current}
	return NewStore(backend, nav, zap.NewNop()), backend, nav
}

var unauthorized = &api.APIError{Method: "GET", Path: api.PathMe, Status: http.StatusUnauthorized, Message: "Not logged in"}

func TestStart(t *testing.T) {
	t.Run("ProbeSuccess", func(t *testing.T) {
		store, backend, nav := setupStore("/dashboard")
		backend.On("Me", mock.Anything).Return(&models.Identity{ID: "u1", Username: "trader"}, nil).Once()

		assert.True(t, store.Session().Loading)
		s := store.Start(context.Background())

		assert.Equal(t, Authenticated, s.State)
		assert.True(t, s.Authenticated)
		assert.False(t, s.Loading)
		assert.Equal(t, "trader", s.Identity.Username)
		assert.Empty(t, nav.replaced)
	})

	t.Run("ProbeUnauthorized", func(t *testing.T) {
		store, backend, _ := setupStore("/auth")
		backend.On("Me", mock.Anything).Return(nil, unauthorized).Once()

		s := store.Start(context.Background())

		assert.Equal(t, Unauthenticated, s.State)
		assert.False(t, s.Loading)
	})

	t.Run("ProbeNetworkFailure", func(t *testing.T) {
		store, backend, _ := setupStore("/dashboard")
		backend.On("Me", mock.Anything).Return(nil, api.ErrNetwork).Once()

		assert.Equal(t, Unauthenticated, store.Start(context.Background()).State)
	})

	t.Run("ProbesOnlyOnce", func(t *testing.T) {
		store, backend, _ := setupStore("/dashboard")
		backend.On("Me", mock.Anything).Return(&models.Identity{}, nil).Once()

		store.Start(context.Background())
		store.Start(context.Background())
		store.Start(context.Background())

		backend.AssertNumberOfCalls(t, "Me", 1)
	})
}

func TestLogin(t *testing.T) {
	t.Run("NavigatesToDashboardOnce", func(t *testing.T) {
		store, backend, nav := setupStore("/auth")
		backend.On("Login", mock.Anything, api.LoginRequest{Email: "a@b.co", Password: "secret1"}).Return(nil).Once()

		resets := 0
		store.OnReset(func() { resets++ })
		var states []State
		store.OnChange(func(s Session) { states = append(states, s.State) })

		require.NoError(t, store.Login(context.Background(), " a@b.co ", " secret1 "))

		assert.Equal(t, []string{PathDashboard}, nav.replaced)
		assert.Equal(t, 1, resets)
		assert.Equal(t, []State{Authenticated}, states)
		assert.True(t, store.Session().Authenticated)
		backend.AssertExpectations(t)
	})

	t.Run("LocalValidation", func(t *testing.T) {
		store, backend, nav := setupStore("/auth")

		err := store.Login(context.Background(), "not-an-email", "12345")

		assert.ErrorIs(t, err, ErrInvalidCredentials)
		var ce CredentialErrors
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, ce, "email")
		assert.Contains(t, ce, "password")
		backend.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
		assert.Empty(t, nav.replaced)
	})

	t.Run("BackendRejects", func(t *testing.T) {
		store, backend, nav := setupStore("/auth")
		backend.On("Login", mock.Anything, mock.Anything).
			Return(&api.APIError{Status: http.StatusBadRequest, Message: "Invalid credentials"}).Once()

		err := store.Login(context.Background(), "a@b.co", "secret1")

		assert.True(t, api.IsStatus(err, http.StatusBadRequest))
		assert.Empty(t, nav.replaced)
		assert.False(t, store.Session().Authenticated)
	})

	t.Run("LateProbeDoesNotOverrideLogin", func(t *testing.T) {
		store, backend, _ := setupStore("/auth")
		backend.On("Login", mock.Anything, mock.Anything).Return(nil).Once()
		backend.On("Me", mock.Anything).Return(nil, unauthorized).Once()

		require.NoError(t, store.Login(context.Background(), "a@b.co", "secret1"))
		s := store.Start(context.Background())

		assert.True(t, s.Authenticated)
	})
}

func TestSignup(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store, backend, nav := setupStore("/auth")
		backend.On("SignUp", mock.Anything, api.SignUpRequest{Username: "trader", Email: "a@b.co", Password: "secret1"}).Return(nil).Once()

		require.NoError(t, store.Signup(context.Background(), "trader", "a@b.co", "secret1"))

		assert.Equal(t, []string{PathDashboard}, nav.replaced)
		assert.True(t, store.Session().Authenticated)
	})

	t.Run("ShortUsername", func(t *testing.T) {
		store, backend, _ := setupStore("/auth")

		err := store.Signup(context.Background(), "ab", "a@b.co", "secret1")

		var ce CredentialErrors
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CredentialErrors{"username": "Username must be at least 3 characters"}, ce)
		backend.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything)
	})

	t.Run("PasswordIsTrimmed", func(t *testing.T) {
		store, _, _ := setupStore("/auth")
		err := store.Signup(context.Background(), "trader", "a@b.co", "  abc   ")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogout(t *testing.T) {
	t.Run("RemoteFailureStillClears", func(t *testing.T) {
		store, backend, nav := setupStore("/dashboard")
		backend.On("Me", mock.Anything).Return(&models.Identity{}, nil).Once()
		backend.On("Logout", mock.Anything).Return(errors.New("connection refused")).Once()
		backend.On("Forget").Return(nil).Once()
		store.Start(context.Background())

		resets := 0
		store.OnReset(func() { resets++ })
		store.Logout(context.Background())

		assert.Equal(t, Unauthenticated, store.Session().State)
		assert.Equal(t, []string{PathLogin}, nav.replaced)
		assert.Equal(t, 1, resets)
		backend.AssertExpectations(t)
	})
}

func TestHandle(t *testing.T) {
	t.Run("UnauthorizedOnProtectedPath", func(t *testing.T) {
		store, backend, nav := setupStore("/orders")
		backend.On("Me", mock.Anything).Return(&models.Identity{}, nil).Once()
		backend.On("Forget").Return(nil)
		store.Start(context.Background())

		var transitions int
		store.OnChange(func(s Session) {
			assert.Equal(t, Unauthenticated, s.State)
			transitions++
		})

		bus := signals.NewBus()
		store.Subscribe(bus)
		bus.Emit(signals.Signal{Kind: signals.Unauthorized, Message: "Session expired"})

		assert.Equal(t, 1, transitions)
		assert.Equal(t, []string{PathAuth}, nav.replaced)

		bus.Emit(signals.Signal{Kind: signals.Unauthorized})
		assert.Equal(t, 2, transitions)
	})

	t.Run("UnauthorizedOnPublicPathDoesNotNavigate", func(t *testing.T) {
		for _, path := range []string{"/auth", "/auth/login", "/login"} {
			store, backend, nav := setupStore(path)
			backend.On("Forget").Return(nil)

			store.Handle(signals.Signal{Kind: signals.Unauthorized})

			assert.Empty(t, nav.replaced, path)
			assert.Equal(t, Unauthenticated, store.Session().State)
		}
	})

	t.Run("OtherSignalsIgnored", func(t *testing.T) {
		store, backend, nav := setupStore("/dashboard")
		store.Handle(signals.Signal{Kind: signals.RateLimited})
		store.Handle(signals.Signal{Kind: signals.ServiceUnavailable})

		assert.Empty(t, nav.replaced)
		assert.Equal(t, Probing, store.Session().State)
		backend.AssertNotCalled(t, "Forget")
	})
}

func TestIsPublic(t *testing.T) {
	assert.True(t, IsPublic("/auth"))
	assert.True(t, IsPublic("/auth/"))
	assert.True(t, IsPublic("/login"))
	assert.False(t, IsPublic("/dashboard"))
	assert.Equal(t, "authenticated", Authenticated.String())
}
