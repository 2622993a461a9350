// Package generate performs the generation call behind every reply:
// credential selection, attempts with failover, output acceptance,
// normalization, humanization and the memory record.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nous-labs/murmur/internal/credentials"
	"github.com/nous-labs/murmur/internal/humanize"
	"github.com/nous-labs/murmur/internal/llm"
	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/internal/telemetry"
	"github.com/nous-labs/murmur/internal/vibe"
)

var (
	// ErrAttemptsExhausted means every attempt failed; the caller skips the reply.
	ErrAttemptsExhausted = errors.New("generation attempts exhausted")
	// ErrQualityRejected marks an output that failed acceptance.
	ErrQualityRejected = errors.New("output rejected")
)

// DisclosurePhrases are self-referential phrases an accepted output may not
// contain. Honest answers to identity questions bypass generation entirely.
var DisclosurePhrases = []string{"as an ai", "bot", "assistant", "language model"}

// Config tunes the generation loop.
type Config struct {
	Attempts       int
	AttemptTimeout time.Duration
	MaxTokens      int // used when the request shape sets none
	Temperature    float64
	TopP           float64
	// Backoff is slept after a failed provider call before the next attempt.
	Backoff time.Duration
}

// DefaultConfig returns the stock generation settings.
func DefaultConfig() Config {
	return Config{
		Attempts:       3,
		AttemptTimeout: 5 * time.Second,
		MaxTokens:      25,
		Temperature:    0.7,
		TopP:           0.9,
		Backoff:        2 * time.Second,
	}
}

// Request describes one reply to generate.
type Request struct {
	Account string
	Label   string // channel display name, for logs
	System  string
	Prompt  string
	Vibe    vibe.Context
}

// Generator turns a Request into accepted, humanized text.
type Generator struct {
	cfg       Config
	pool      *credentials.Pool
	limiters  *credentials.Limiters
	dup       *credentials.DuplicateGuard
	providers *llm.Cache
	humanizer *humanize.Pipeline
	store     memory.Store
	sleep     func(context.Context, time.Duration) error
}

// New wires a generator.
func New(cfg Config, pool *credentials.Pool, limiters *credentials.Limiters, dup *credentials.DuplicateGuard,
	providers *llm.Cache, humanizer *humanize.Pipeline, store memory.Store) *Generator {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Generator{
		cfg:       cfg,
		pool:      pool,
		limiters:  limiters,
		dup:       dup,
		providers: providers,
		humanizer: humanizer,
		store:     store,
		sleep:     sleepCtx,
	}
}

// Generate runs up to cfg.Attempts provider calls and returns the first
// accepted output, normalized and humanized. Rate-limited and rejected
// attempts cool the credential used. Every accepted output is recorded in
// the memory store under the system author.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	log := slog.With("account", req.Account, "channel", req.Label)
	start := time.Now()
	defer func() { telemetry.Observe(telemetry.GenerationDuration, time.Since(start).Seconds()) }()

	maxTokens := req.Vibe.Shape.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}

	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := g.limiters.For(req.Account).Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for rate limiter: %w", err)
		}

		cred, err := g.pool.Acquire()
		if err != nil {
			log.Warn("no credential available", "attempt", attempt, "error", err)
			if err := g.sleep(ctx, g.cfg.Backoff); err != nil {
				return "", err
			}
			continue
		}
		provider, err := g.providers.Get(cred)
		if err != nil {
			log.Error("credential has no usable provider", "credential", cred.Name, "error", err)
			g.pool.Cool(cred)
			continue
		}

		log.Info("generating", "attempt", attempt, "provider", provider.Name(), "credential", cred.Name)
		text, err := g.call(ctx, provider, llm.CompletionRequest{
			System:      req.System,
			Prompt:      req.Prompt,
			Model:       cred.Model,
			MaxTokens:   maxTokens,
			Temperature: moodTemperature(g.cfg.Temperature, req.Vibe.Mood),
			TopP:        g.cfg.TopP,
		})
		switch {
		case err == nil:
		case llm.IsRateLimited(err):
			telemetry.CountAttempt(provider.Name(), "rate_limited")
			log.Warn("credential rate limited, cooling", "credential", cred.Name)
			g.pool.Cool(cred)
			if err := g.sleep(ctx, g.cfg.Backoff); err != nil {
				return "", err
			}
			continue
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			telemetry.CountAttempt(provider.Name(), "error")
			log.Warn("provider call failed", "credential", cred.Name, "error", err)
			if err := g.sleep(ctx, g.cfg.Backoff); err != nil {
				return "", err
			}
			continue
		}

		if err := g.accept(text); err != nil {
			telemetry.CountAttempt(provider.Name(), "rejected")
			log.Info("output rejected, cooling credential", "credential", cred.Name, "reason", err)
			g.pool.Cool(cred)
			continue
		}

		telemetry.CountAttempt(provider.Name(), "accepted")
		out := g.humanizer.Apply(text, req.Vibe.Mood)
		log.Info("generated", "text", out, "topic", req.Vibe.Topic, "mood", req.Vibe.Mood)

		if err := g.store.Append(ctx, req.Account, memory.Exchange{
			Author:      memory.AuthorSystem,
			Content:     req.Prompt,
			BotResponse: out,
			Topic:       string(req.Vibe.Topic),
		}); err != nil {
			log.Error("record generation", "error", err)
		}
		return out, nil
	}

	log.Warn("generation gave up", "attempts", g.cfg.Attempts)
	return "", ErrAttemptsExhausted
}

// moodTemperature scales base by the mood's intensity. Scaling never lifts
// the result above 1 unless base already was, since some providers cap
// temperature at 1.
func moodTemperature(base float64, m vibe.Mood) float64 {
	t := base * m.Profile().Multiplier
	if ceiling := max(1.0, base); t > ceiling {
		t = ceiling
	}
	return t
}

func (g *Generator) call(ctx context.Context, p llm.Provider, req llm.CompletionRequest) (string, error) {
	if g.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()
	}
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return Normalize(resp.Content), nil
}

// accept returns an ErrQualityRejected error when text may not be used.
// An accepted text becomes the output later calls are compared against.
func (g *Generator) accept(text string) error {
	if text == "" {
		return fmt.Errorf("%w: empty", ErrQualityRejected)
	}
	for _, phrase := range DisclosurePhrases {
		if strings.Contains(text, phrase) {
			return fmt.Errorf("%w: contains %q", ErrQualityRejected, phrase)
		}
	}
	if !g.dup.Accept(text) {
		return fmt.Errorf("%w: duplicate of previous output", ErrQualityRejected)
	}
	return nil
}

// Normalize lowercases and trims text and strips one layer of surrounding
// quotes.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimPrefix(text, `"`)
	text = strings.TrimPrefix(text, `'`)
	text = strings.TrimSuffix(text, `"`)
	text = strings.TrimSuffix(text, `'`)
	return strings.TrimSpace(text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
