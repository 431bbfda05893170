package signals

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBus_EmitReachesEveryListener(t *testing.T) {
	bus := NewBus()
	var a, b []Signal
	bus.Subscribe(func(s Signal) { a = append(a, s) })
	bus.Subscribe(func(s Signal) { b = append(b, s) })

	bus.Emit(Signal{Kind: RateLimited, RetryAfter: 15 * time.Second})

	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
	assert.Equal(t, RateLimited, a[0].Kind)
	assert.Equal(t, 15*time.Second, a[0].RetryAfter)
	assert.False(t, a[0].At.IsZero())
}

func TestBus_RapidFailuresAreNotCollapsed(t *testing.T) {
	bus := NewBus()
	count := 0
	bus.Subscribe(func(Signal) { count++ })

	for i := 0; i < 3; i++ {
		bus.Emit(Signal{Kind: ServiceUnavailable})
	}
	assert.Equal(t, 3, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0
	unsubscribe := bus.Subscribe(func(Signal) { count++ })

	bus.Emit(Signal{Kind: Unauthorized})
	unsubscribe()
	unsubscribe()
	bus.Emit(Signal{Kind: Unauthorized})

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_ListenerMayUnsubscribeDuringDelivery(t *testing.T) {
	bus := NewBus()
	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(func(Signal) {
		calls++
		unsubscribe()
	})

	bus.Emit(Signal{Kind: Unauthorized})
	bus.Emit(Signal{Kind: Unauthorized})
	assert.Equal(t, 1, calls)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(Signal) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit(Signal{Kind: RateLimited})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, count)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unauthorized", Unauthorized.String())
	assert.Equal(t, "rate-limited", RateLimited.String())
	assert.Equal(t, "service-unavailable", ServiceUnavailable.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
