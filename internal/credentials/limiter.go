package credentials

import (
	"context"
	"sync"
	"time"
)

// DefaultBackoff is how long Wait sleeps before re-checking a saturated window.
const DefaultBackoff = 2 * time.Second

// RateLimiter admits at most Max calls in any trailing Window.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	backoff time.Duration
	calls   []time.Time
	now     func() time.Time
}

// NewRateLimiter returns a sliding-window limiter.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		backoff: DefaultBackoff,
		now:     time.Now,
	}
}

// Allow records and admits a call if the window has room.
func (l *RateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.calls = kept
	if len(l.calls) >= l.max {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// Wait blocks until a call is admitted or ctx ends.
func (l *RateLimiter) Wait(ctx context.Context) error {
	for !l.Allow() {
		t := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Limiters keeps one RateLimiter per account.
type Limiters struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	byAcct map[string]*RateLimiter
}

// NewLimiters returns a registry creating limiters with the given bounds.
func NewLimiters(max int, window time.Duration) *Limiters {
	return &Limiters{max: max, window: window, byAcct: make(map[string]*RateLimiter)}
}

// For returns the limiter for account, creating it on first use.
func (ls *Limiters) For(account string) *RateLimiter {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.byAcct[account]
	if !ok {
		l = NewRateLimiter(ls.max, ls.window)
		ls.byAcct[account] = l
	}
	return l
}
