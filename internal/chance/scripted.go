package chance

import "sync"

// Scripted replays fixed values, for tests that need a particular branch.
// When a script runs out the fallback value is returned.
type Scripted struct {
	mu        sync.Mutex
	floats    []float64
	ints      []int
	FloatTail float64
	IntTail   int
}

// NewScripted returns a source that yields floats in order. Once they are
// exhausted it keeps returning 0.99, which fails every probability gate.
func NewScripted(floats ...float64) *Scripted {
	return &Scripted{floats: floats, FloatTail: 0.99}
}

// WithInts queues values for IntN. Each is reduced modulo n.
func (s *Scripted) WithInts(ints ...int) *Scripted {
	s.mu.Lock()
	s.ints = append(s.ints, ints...)
	s.mu.Unlock()
	return s
}

func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return s.FloatTail
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *Scripted) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.IntTail
	if len(s.ints) > 0 {
		v = s.ints[0]
		s.ints = s.ints[1:]
	}
	if v < 0 {
		v = -v
	}
	return v % n
}
