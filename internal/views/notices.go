package views

import (
	"fmt"
	"sync"
	"time"

	"trading-terminal-go/internal/signals"
)

// Stable toast ids. A new toast with the same id replaces the old one.
const (
	ToastRateLimited  = "rate-limited"
	ToastUnauthorized = "unauthorized"
)

// ToastTTL is how long a toast stays visible.
const ToastTTL = 5 * time.Second

const (
	defaultUnauthorizedMessage = "Your session has expired. Please sign in again."
	serviceUnavailableMessage  = "Service unavailable. Data may be out of date until the backend recovers."
)

// Toast is a short-lived notice.
type Toast struct {
	ID      string
	Kind    signals.Kind
	Message string
	Expires time.Time
}

// Notices turns client signals into toasts and the service banner.
type Notices struct {
	now func() time.Time

	mu     sync.Mutex
	toasts []Toast
	banner bool
}

// NewNotices creates an empty notice board.
func NewNotices() *Notices {
	return &Notices{now: time.Now}
}

// Subscribe attaches the board to bus.
func (n *Notices) Subscribe(bus *signals.Bus) (unsubscribe func()) {
	return bus.Subscribe(n.Handle)
}

// Handle records one signal.
func (n *Notices) Handle(sig signals.Signal) {
	switch sig.Kind {
	case signals.RateLimited:
		n.push(Toast{
			ID:      ToastRateLimited,
			Kind:    sig.Kind,
			Message: fmt.Sprintf("Rate limited, try again in %d seconds", int(sig.RetryAfter.Round(time.Second).Seconds())),
		})
	case signals.Unauthorized:
		msg := sig.Message
		if msg == "" {
			msg = defaultUnauthorizedMessage
		}
		n.push(Toast{ID: ToastUnauthorized, Kind: sig.Kind, Message: msg})
	case signals.ServiceUnavailable:
		n.mu.Lock()
		n.banner = true
		n.mu.Unlock()
	}
}

func (n *Notices) push(t Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t.Expires = n.now().Add(ToastTTL)
	for i := range n.toasts {
		if n.toasts[i].ID == t.ID {
			n.toasts[i] = t
			return
		}
	}
	n.toasts = append(n.toasts, t)
}

// Toasts returns the toasts that have not expired.
func (n *Notices) Toasts() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	live := n.toasts[:0]
	for _, t := range n.toasts {
		if now.Before(t.Expires) {
			live = append(live, t)
		}
	}
	n.toasts = live
	return append([]Toast(nil), live...)
}

// Banner returns the service banner text while it is shown.
func (n *Notices) Banner() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.banner {
		return "", false
	}
	return serviceUnavailableMessage, true
}

// Dismiss hides the banner.
func (n *Notices) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.banner = false
}

// Recovered hides the banner after a request has succeeded again.
func (n *Notices) Recovered() {
	n.Dismiss()
}
