package query

import (
	"context"
	"time"

	"go.uber.org/zap"

	"trading-terminal-go/internal/metrics"
)

// Query describes how to load one resource.
type Query[T any] struct {
	Key   Key
	Fetch func(ctx context.Context) (T, error)
	// Interval is the polling period. Zero means on demand only.
	Interval time.Duration
	// Enabled gates both reads and polling. Nil means always enabled.
	Enabled func() bool
}

func (q Query[T]) enabled() bool {
	return q.Enabled == nil || q.Enabled()
}

func (q Query[T]) load(ctx context.Context) (any, error) {
	return q.Fetch(ctx)
}

// Get serves a fresh cached value or fetches one.
func Get[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	var zero T
	if !q.enabled() {
		return zero, ErrDisabled
	}
	if v, ok := c.lookup(q.Key); ok {
		metrics.CacheReads.WithLabelValues(q.Key.Resource(), "hit").Inc()
		return cast[T](q.Key, v)
	}
	return Refetch(ctx, c, q)
}

// Refetch always goes to the backend, sharing any identical fetch in flight.
func Refetch[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	var zero T
	if !q.enabled() {
		return zero, ErrDisabled
	}
	v, err := c.fetch(ctx, q.Key, q.load)
	if err != nil {
		return zero, err
	}
	return cast[T](q.Key, v)
}

// Peek returns the last successfully fetched value without fetching.
func Peek[T any](c *Cache, key Key) (T, bool) {
	var zero T
	v, ok := c.peek(key)
	if !ok {
		return zero, false
	}
	out, err := cast[T](key, v)
	if err != nil {
		return zero, false
	}
	return out, true
}

// Poll reads q immediately and then refetches it every Interval until ctx is
// done, handing each result to onResult. A disabled query is not polled; a
// query without an interval is read once.
func Poll[T any](ctx context.Context, c *Cache, q Query[T], onResult func(T, error)) {
	if !q.enabled() {
		return
	}
	onResult(Get(ctx, c, q))
	if q.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(q.Interval)
	defer ticker.Stop()

	c.logger.Debug("Starting poll loop", zap.String("key", q.Key.String()), zap.Duration("interval", q.Interval))
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Stopping poll loop", zap.String("key", q.Key.String()))
			return
		case <-ticker.C:
			if !q.enabled() {
				continue
			}
			v, err := Refetch(ctx, c, q)
			if ctx.Err() != nil {
				return
			}
			onResult(v, err)
		}
	}
}

// Mutation is a write against the backend followed by cache invalidation.
type Mutation[In, Out any] struct {
	Run func(ctx context.Context, in In) (Out, error)
	// Invalidates lists the key prefixes to mark stale after a success.
	Invalidates func(in In) []Key
	// Validate, when set, rejects input before any request is sent.
	Validate func(in In) error
}

// Do runs the mutation. Invalidation only happens when Run succeeds.
func (m Mutation[In, Out]) Do(ctx context.Context, c *Cache, in In) (Out, error) {
	var zero Out
	if m.Validate != nil {
		if err := m.Validate(in); err != nil {
			return zero, err
		}
	}
	out, err := m.Run(ctx, in)
	if err != nil {
		return zero, err
	}
	if m.Invalidates != nil {
		c.Invalidate(m.Invalidates(in)...)
	}
	return out, nil
}
