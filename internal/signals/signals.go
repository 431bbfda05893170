package signals

import (
	"sync"
	"time"
)

// Kind classifies a failure signal raised by the HTTP client.
type Kind int

const (
	// Unauthorized is raised on HTTP 401, except for the session probe.
	Unauthorized Kind = iota + 1
	// RateLimited is raised on HTTP 429.
	RateLimited
	// ServiceUnavailable is raised on HTTP 500.
	ServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case RateLimited:
		return "rate-limited"
	case ServiceUnavailable:
		return "service-unavailable"
	}
	return "unknown"
}

// Signal is one failure notification. Message is set for Unauthorized when
// the server supplied one; RetryAfter is set for RateLimited.
type Signal struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Method     string
	Path       string
	RequestID  string
	At         time.Time
}

// Listener receives signals. It runs on the goroutine that emitted the
// signal and must not block for long.
type Listener func(Signal)

// Emitter is the publishing side of a Bus.
type Emitter interface {
	Emit(Signal)
}

// Bus fans out every emitted signal to all current listeners.
// Delivery is synchronous, unqueued and unacknowledged: n failures produce n
// deliveries per listener. Listeners that want to collapse repeats do so
// themselves.
type Bus struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

var _ Emitter = (*Bus)(nil)

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[uint64]Listener)}
}

// Subscribe registers l and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers s to every listener registered at the time of the call.
func (b *Bus) Emit(s Signal) {
	if s.At.IsZero() {
		s.At = time.Now()
	}

	b.mu.RLock()
	current := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		current = append(current, l)
	}
	b.mu.RUnlock()

	// Called outside the lock so a listener may subscribe or unsubscribe.
	for _, l := range current {
		l(s)
	}
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
