package credentials

import "sync"

// DuplicateGuard remembers the most recently accepted output, process-wide.
type DuplicateGuard struct {
	mu   sync.Mutex
	last string
	set  bool
}

// IsDuplicate reports whether text equals the last accepted output.
func (g *DuplicateGuard) IsDuplicate(text string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.set && g.last == text
}

// Accept stores text as the last accepted output unless it equals the
// current one. Compare and store happen under one lock, so concurrent
// callers with the same text see exactly one acceptance.
func (g *DuplicateGuard) Accept(text string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.set && g.last == text {
		return false
	}
	g.last, g.set = text, true
	return true
}

// Reset forgets the last output.
func (g *DuplicateGuard) Reset() {
	g.mu.Lock()
	g.last, g.set = "", false
	g.mu.Unlock()
}
