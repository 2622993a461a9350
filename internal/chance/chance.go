// Package chance provides the random source every probabilistic decision
// in murmur draws from, so tests can force each branch.
package chance

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source yields uniform random values.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n must be > 0.
	IntN(n int) int
}

// Locked wraps a math/rand generator behind a mutex so queue workers and
// inbound handlers can share one source.
type Locked struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a source seeded from the wall clock.
func New() *Locked {
	seed := uint64(time.Now().UnixNano())
	return NewSeeded(seed)
}

// NewSeeded returns a reproducible source.
func NewSeeded(seed uint64) *Locked {
	return &Locked{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// Roll reports whether a draw from src falls under p.
func Roll(src Source, p float64) bool {
	return src.Float64() < p
}

// Pick returns a uniformly chosen element of items. items must be non-empty.
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}

// Between returns a duration uniformly distributed in [lo, hi].
func Between(src Source, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(src.Float64()*float64(hi-lo))
}
