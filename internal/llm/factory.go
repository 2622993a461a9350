package llm

import (
	"strings"
	"sync"

	"github.com/nous-labs/murmur/internal/credentials"
)

// Factory builds a Provider for a credential.
type Factory func(c credentials.Credential) (Provider, error)

// NewProvider maps a credential to its provider implementation. "google"
// uses the GenAI SDK, "anthropic" the Anthropic SDK, anything else is
// treated as an OpenAI-compatible endpoint.
func NewProvider(c credentials.Credential) (Provider, error) {
	switch strings.ToLower(c.Provider) {
	case "google", "gemini":
		return NewGemini(geminiBaseURL(c.Endpoint), c.APIKey, c.Model), nil
	case "anthropic", "claude":
		return NewAnthropic(c.Name, c.Endpoint, c.APIKey, c.Model), nil
	case "":
		return nil, ErrNoProvider
	default:
		if c.Endpoint == "" {
			return nil, &ProviderError{Message: "endpoint required", Provider: c.Provider}
		}
		return NewOpenAICompat(c.Provider, c.Endpoint, c.APIKey, c.Model), nil
	}
}

// geminiBaseURL reduces a full REST endpoint such as
// https://host/v1beta/models/gemini:generateContent?key=... to its host,
// which is what the SDK wants. Empty means the SDK default.
func geminiBaseURL(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if i := strings.Index(endpoint, "/v1"); i > 0 {
		return endpoint[:i+1]
	}
	if i := strings.IndexByte(endpoint, '?'); i > 0 {
		return endpoint[:i]
	}
	return endpoint
}

// Cache memoises providers per credential key.
type Cache struct {
	factory Factory
	mu      sync.Mutex
	byKey   map[string]Provider
}

// NewCache wraps factory. A nil factory means NewProvider.
func NewCache(factory Factory) *Cache {
	if factory == nil {
		factory = NewProvider
	}
	return &Cache{factory: factory, byKey: make(map[string]Provider)}
}

// Get returns the provider for c, building it on first use.
func (c *Cache) Get(cred credentials.Credential) (Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.byKey[cred.Key()]; ok {
		return p, nil
	}
	p, err := c.factory(cred)
	if err != nil {
		return nil, err
	}
	c.byKey[cred.Key()] = p
	return p, nil
}
