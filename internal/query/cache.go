package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trading-terminal-go/internal/metrics"
)

// ErrDisabled is returned when reading a query whose Enabled flag is false.
var ErrDisabled = errors.New("query disabled")

type entry struct {
	value     any
	hasValue  bool
	err       error
	updatedAt time.Time
	stale     bool
	// version is bumped by every invalidation so a fetch that started
	// earlier cannot mark the entry fresh again.
	version uint64
}

// Cache holds the last resolved value per key and deduplicates concurrent
// fetches of the same key.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	keys    map[string]Key
	epoch   uint64
	group   singleflight.Group
	logger  *zap.Logger
	now     func() time.Time
}

// NewCache creates an empty cache.
func NewCache(logger *zap.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		keys:    make(map[string]Key),
		logger:  logger.Named("query"),
		now:     time.Now,
	}
}

// Invalidate marks every entry under the given key prefixes stale. The next
// read of a stale entry fetches again.
func (c *Cache) Invalidate(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, key := range c.keys {
		for _, prefix := range prefixes {
			if key.HasPrefix(prefix) {
				e := c.entries[id]
				e.stale = true
				e.version++
				c.logger.Debug("Invalidated cache entry", zap.String("key", id))
				break
			}
		}
	}
}

// Reset drops every entry. Fetches still in flight when Reset is called
// resolve to their callers but are not cached.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.keys = make(map[string]Key)
	c.epoch++
	c.logger.Debug("Cache reset", zap.Uint64("epoch", c.epoch))
}

// UpdatedAt returns when key last resolved, successfully or not.
func (c *Cache) UpdatedAt(key Key) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || e.updatedAt.IsZero() {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// IsStale reports whether key has been invalidated since it last resolved.
// Unknown keys are stale.
func (c *Cache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	return !ok || e.stale || !e.hasValue
}

// lookup returns the cached value when it is fresh.
func (c *Cache) lookup(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || e.stale || !e.hasValue || e.err != nil {
		return nil, false
	}
	return e.value, true
}

// peek returns the last successful value, fresh or not.
func (c *Cache) peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// begin records the state a fetch starts from and returns the flight id.
func (c *Cache) begin(key Key) (flight string, epoch, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{stale: true}
		c.entries[id] = e
		c.keys[id] = key
	}
	flight = id + "#" + strconv.FormatUint(c.epoch, 10) + "." + strconv.FormatUint(e.version, 10)
	return flight, c.epoch, e.version
}

// store saves a fetch result. The most recent resolution wins; a result from
// before an invalidation is kept but stays stale, and a result from before a
// Reset is dropped.
func (c *Cache) store(key Key, epoch, version uint64, value any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		c.logger.Debug("Discarding result fetched before reset", zap.String("key", key.String()))
		return
	}
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
		c.keys[id] = key
	}

	e.updatedAt = c.now()
	e.err = err
	if err == nil {
		e.value = value
		e.hasValue = true
	}
	e.stale = err != nil || e.version != version
}

// fetch runs fn once per flight. Concurrent callers for the same key and
// version share the first caller's request.
func (c *Cache) fetch(ctx context.Context, key Key, fn func(context.Context) (any, error)) (any, error) {
	flight, epoch, version := c.begin(key)
	v, err, shared := c.group.Do(flight, func() (any, error) {
		value, err := fn(ctx)
		c.store(key, epoch, version, value, err)
		return value, err
	})

	outcome := "fetch"
	if err != nil {
		outcome = "error"
	}
	metrics.CacheReads.WithLabelValues(key.Resource(), outcome).Inc()
	if shared {
		c.logger.Debug("Joined in-flight fetch", zap.String("key", key.String()))
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func cast[T any](key Key, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T", key, v)
	}
	return out, nil
}
