package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trading-terminal-go/internal/config"
	"trading-terminal-go/internal/database"
	"trading-terminal-go/internal/metrics"
	"trading-terminal-go/internal/signals"
)

// Client issues every backend call. It attaches the bearer token and
// session cookies, and classifies failed responses into signals.
type Client struct {
	client            *resty.Client
	baseURL           *url.URL
	creds             database.CredentialStore
	signals           signals.Emitter
	logger            *zap.Logger
	limiter           *rate.Limiter
	defaultRetryAfter time.Duration

	mu    sync.RWMutex
	token string
}

// NewClient creates a backend client and restores any stored credentials.
func NewClient(cfg *config.Backend, creds database.CredentialStore, emitter signals.Emitter, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client.SetCookieJar(jar)

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		client:            client,
		baseURL:           base,
		creds:             creds,
		signals:           emitter,
		logger:            logger.Named("api"),
		limiter:           rate.NewLimiter(limit, burst),
		defaultRetryAfter: cfg.DefaultRetryAfter,
	}
	if c.defaultRetryAfter <= 0 {
		c.defaultRetryAfter = 30 * time.Second
	}

	token, cookies, err := creds.Load()
	if err != nil {
		c.logger.Warn("Could not restore stored credentials", zap.Error(err))
	} else {
		c.token = token
		jar.SetCookies(base, cookies)
	}
	return c, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Token returns the current bearer token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HasCredentials reports whether a token or session cookie is held.
func (c *Client) HasCredentials() bool {
	return c.Token() != "" || len(c.client.GetClient().Jar.Cookies(c.baseURL)) > 0
}

// remember stores token (when non-empty) and the jar's cookies.
func (c *Client) remember(token string) error {
	c.mu.Lock()
	if token != "" {
		c.token = token
	}
	current := c.token
	c.mu.Unlock()

	return c.creds.Save(current, c.client.GetClient().Jar.Cookies(c.baseURL))
}

// Forget drops the in-memory and stored credentials.
func (c *Client) Forget() error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if jar, err := cookiejar.New(nil); err == nil {
		c.client.SetCookieJar(jar)
	}
	return c.creds.Clear()
}

// Get issues a GET request and decodes a 2xx JSON body into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.call(ctx, http.MethodGet, path, nil, result)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.call(ctx, http.MethodPost, path, body, result)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, result any) error {
	return c.call(ctx, http.MethodDelete, path, nil, result)
}

func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if result == nil || len(resp.Body()) == 0 {
		return nil
	}
	return decodeJSON(resp.Body(), result)
}

// doRequest executes one request. There are no retries: a failed request is
// classified once and returned to the caller.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req := c.client.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	c.logger.Debug("Executing request",
		zap.String("method", method),
		zap.String("url", c.client.BaseURL+path),
		zap.String("request_id", requestID),
	)
	resp, err := req.Execute(method, path)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, metrics.StatusClass(0)).Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("Could not connect to backend. Is the backend running?",
			zap.String("base_url", c.BaseURL()),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}

	metrics.RequestsTotal.WithLabelValues(method, metrics.StatusClass(resp.StatusCode())).Inc()
	if resp.IsSuccess() {
		return resp, nil
	}

	apiErr := newAPIError(method, path, resp.StatusCode(), resp.Header(), resp.Body(), c.defaultRetryAfter)
	c.classify(apiErr, requestID)
	return resp, apiErr
}

// classify broadcasts a signal for 401, 429 and 500. A 401 from the session
// probe is left to the caller so a signed-out start does not loop.
func (c *Client) classify(apiErr *APIError, requestID string) {
	sig := signals.Signal{
		Method:    apiErr.Method,
		Path:      apiErr.Path,
		RequestID: requestID,
	}

	switch apiErr.Status {
	case http.StatusUnauthorized:
		if isProbe(apiErr.Path) {
			c.logger.Debug("Session probe rejected", zap.String("request_id", requestID))
			return
		}
		sig.Kind = signals.Unauthorized
		sig.Message = apiErr.Message
	case http.StatusTooManyRequests:
		sig.Kind = signals.RateLimited
		sig.RetryAfter = apiErr.RetryAfter
	case http.StatusInternalServerError:
		sig.Kind = signals.ServiceUnavailable
	default:
		return
	}

	c.logger.Warn("Backend request failed",
		zap.String("signal", sig.Kind.String()),
		zap.String("method", apiErr.Method),
		zap.String("path", apiErr.Path),
		zap.Int("status", apiErr.Status),
		zap.Duration("retry_after", sig.RetryAfter),
	)
	metrics.SignalsEmitted.WithLabelValues(sig.Kind.String()).Inc()
	if c.signals != nil {
		c.signals.Emit(sig)
	}
}

func isProbe(path string) bool {
	return path == PathMe
}

type requestIDKey struct{}

// WithRequestID makes the next request made with ctx carry id as its
// X-Request-ID, so callers can correlate a call with their own records.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id set by WithRequestID, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// IsCanceled reports whether err came from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
