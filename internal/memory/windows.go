package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// History is a bounded per-channel log of recent "author: text" lines.
type History struct {
	mu    sync.Mutex
	size  int
	lines map[string][]string
}

// NewHistory keeps the last size lines per channel.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 5
	}
	return &History{size: size, lines: make(map[string][]string)}
}

// Add appends line to channel, evicting the oldest past capacity.
func (h *History) Add(channel, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines[channel] = appendBounded(h.lines[channel], line, h.size)
}

// Lines returns a copy of channel's lines, oldest first.
func (h *History) Lines(channel string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines[channel]...)
}

// Windows is the per (channel, user) sliding window of recent texts.
type Windows struct {
	mu     sync.Mutex
	size   int
	recent int
	texts  map[string]map[string][]string
}

// NewWindows keeps size texts per user and channel and reports the last
// recent of them.
func NewWindows(size, recent int) *Windows {
	if size <= 0 {
		size = 10
	}
	if recent <= 0 || recent > size {
		recent = size
	}
	return &Windows{size: size, recent: recent, texts: make(map[string]map[string][]string)}
}

// Add records text for user in channel.
func (w *Windows) Add(channel, user, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	byUser, ok := w.texts[channel]
	if !ok {
		byUser = make(map[string][]string)
		w.texts[channel] = byUser
	}
	byUser[user] = appendBounded(byUser[user], text, w.size)
}

// Recent returns the user's latest texts in channel, oldest first.
func (w *Windows) Recent(channel, user string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	texts := w.texts[channel][user]
	if len(texts) > w.recent {
		texts = texts[len(texts)-w.recent:]
	}
	return append([]string(nil), texts...)
}

// Reset drops every window.
func (w *Windows) Reset() {
	w.mu.Lock()
	w.texts = make(map[string]map[string][]string)
	w.mu.Unlock()
}

func appendBounded(s []string, v string, size int) []string {
	s = append(s, v)
	if len(s) > size {
		s = append(s[:0:0], s[len(s)-size:]...)
	}
	return s
}

// Profiles caches user profiles in process, keyed by account then user,
// and writes merged profiles through to the Store.
type Profiles struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	byAcct map[string]map[string]Profile
}

// NewProfiles wraps store.
func NewProfiles(store Store) *Profiles {
	return &Profiles{store: store, now: time.Now, byAcct: make(map[string]map[string]Profile)}
}

// Load fills the cache for account from the store.
func (p *Profiles) Load(ctx context.Context, account string) error {
	loaded, err := p.store.LoadProfiles(ctx, account)
	if err != nil {
		return fmt.Errorf("load profiles for %s: %w", account, err)
	}
	p.mu.Lock()
	p.byAcct[account] = loaded
	p.mu.Unlock()
	return nil
}

// Get returns a copy of the cached profile, or an empty one.
func (p *Profiles) Get(account, user string) Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.byAcct[account][user]
	if !ok {
		return Profile{UserID: user, Preferences: map[string]string{}}
	}
	prof.Preferences = maps.Clone(prof.Preferences)
	return prof
}

// Merge folds prefs into the user's profile and persists the result.
// Existing keys not in prefs are kept.
func (p *Profiles) Merge(ctx context.Context, account, user string, prefs map[string]string) (Profile, error) {
	p.mu.Lock()
	byUser, ok := p.byAcct[account]
	if !ok {
		byUser = make(map[string]Profile)
		p.byAcct[account] = byUser
	}
	prof := byUser[user]
	prof.UserID = user
	merged := maps.Clone(prof.Preferences)
	if merged == nil {
		merged = make(map[string]string, len(prefs))
	}
	maps.Copy(merged, prefs)
	prof.Preferences = merged
	prof.LastSeen = p.now()
	byUser[user] = prof
	out := prof
	out.Preferences = maps.Clone(merged)
	p.mu.Unlock()

	if err := p.store.UpsertProfile(ctx, account, out); err != nil {
		return out, err
	}
	return out, nil
}
