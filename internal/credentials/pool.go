// Package credentials manages the language-model credentials that replies
// are generated with: which one to use next, which are cooling off after a
// rate limit or a rejected output, and how fast each account may call out.
package credentials

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/nous-labs/murmur/internal/chance"
)

// ErrExhausted is returned by Acquire when every credential is cooling.
// The cooling set is cleared before it is returned.
var ErrExhausted = errors.New("all credentials are cooling")

// Credential is one provider endpoint plus secret. Immutable after load.
type Credential struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model_name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Enabled  bool   `json:"enabled"`
}

// Key identifies a credential in the cooling set.
func (c Credential) Key() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.Provider + "|" + c.Endpoint + "|" + c.Model
}

// Pool hands out credentials. With rotation on it picks uniformly among the
// credentials that are not cooling; with rotation off it always returns the
// credential at the current index.
type Pool struct {
	mu       sync.Mutex
	creds    []Credential
	cooling  map[string]struct{}
	rotate   bool
	current  int
	rng      chance.Source
	onChange func(cooling int)
}

// NewPool builds a pool over the enabled credentials in creds.
func NewPool(creds []Credential, rotate bool, rng chance.Source) *Pool {
	enabled := make([]Credential, 0, len(creds))
	for _, c := range creds {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return &Pool{
		creds:   enabled,
		cooling: make(map[string]struct{}),
		rotate:  rotate,
		rng:     rng,
	}
}

// OnCoolingChange registers a hook invoked with the cooling-set size after
// every change. Used for metrics.
func (p *Pool) OnCoolingChange(fn func(cooling int)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Size returns the number of enabled credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Acquire returns the credential for the next attempt.
func (p *Pool) Acquire() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) == 0 {
		return Credential{}, ErrExhausted
	}
	if !p.rotate {
		return p.creds[p.current%len(p.creds)], nil
	}

	available := make([]Credential, 0, len(p.creds))
	for _, c := range p.creds {
		if _, cooling := p.cooling[c.Key()]; !cooling {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		slog.Warn("all credentials cooling, clearing cooling set", "credentials", len(p.creds))
		p.cooling = make(map[string]struct{})
		p.notifyLocked()
		return Credential{}, ErrExhausted
	}
	return chance.Pick(p.rng, available), nil
}

// Cool marks c as unusable until the next reset.
func (p *Pool) Cool(c Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooling[c.Key()] = struct{}{}
	p.notifyLocked()
}

// Cooling reports whether c is in the cooling set.
func (p *Pool) Cooling(c Credential) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cooling[c.Key()]
	return ok
}

// CoolingCount returns the size of the cooling set.
func (p *Pool) CoolingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cooling)
}

// Advance moves the fixed index used when rotation is off.
func (p *Pool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) > 0 {
		p.current = (p.current + 1) % len(p.creds)
	}
}

// Reset empties the cooling set.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooling = make(map[string]struct{})
	p.notifyLocked()
}

func (p *Pool) notifyLocked() {
	if p.onChange != nil {
		p.onChange(len(p.cooling))
	}
}
