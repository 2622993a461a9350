// Package orchestrator decides which inbound messages get a reply and
// drives each reply through the channel queue, generation, humanized
// timing and delivery. It also starts conversations in quiet channels.
package orchestrator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/generate"
	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/internal/queue"
	"github.com/nous-labs/murmur/internal/telemetry"
	"github.com/nous-labs/murmur/pkg/channel"
	"github.com/nous-labs/murmur/pkg/events"
)

// Generator produces reply text. Implemented by *generate.Generator.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (string, error)
}

// Enqueuer accepts reply tasks. Implemented by *queue.Scheduler.
type Enqueuer interface {
	Enqueue(task queue.Task) error
}

// ChannelConfig is one channel an account watches.
type ChannelConfig struct {
	ID    string
	Name  string
	UseAI bool
}

// Reply styles.
const (
	StyleReply   = "reply"   // thread the reply to the triggering message
	StyleMention = "mention" // post in channel prefixed with the author's name
	StyleSmart   = "smart"   // threaded where the platform allows
)

// Settings are the behaviour knobs of an orchestrator.
type Settings struct {
	MinMessageLength int
	SkipKinds        []channel.Kind

	RespondToMention float64
	RespondToGeneral float64
	SkipRate         float64

	HistorySize   int // channel lines shown to the model
	MemoryContext int // store exchanges shown to the model

	ReplyStyle         string
	MaxResponsesPerDay int // 0 means unlimited
	Personas           bool

	VaryTyping      bool
	TypingVariation float64

	Reactions ReactionSettings
	Quiet     QuietSettings

	// DisclosureReply answers sincere "are you a bot" questions.
	DisclosureReply string
}

// DefaultSettings mirrors the stock configuration.
func DefaultSettings() Settings {
	return Settings{
		MinMessageLength:   1,
		SkipKinds:          []channel.Kind{channel.KindSystem},
		RespondToMention:   0.9,
		RespondToGeneral:   0.5,
		SkipRate:           0.1,
		HistorySize:        5,
		MemoryContext:      10,
		ReplyStyle:         StyleSmart,
		MaxResponsesPerDay: 50,
		Personas:           true,
		TypingVariation:    0.3,
		Reactions:          DefaultReactionSettings(),
		Quiet:              DefaultQuietSettings(),
		DisclosureReply:    "yes, this account is automated. replies here are written by a language model",
	}
}

// Deps are the collaborators an orchestrator needs.
type Deps struct {
	Client    channel.Client
	Generator Generator
	Queue     Enqueuer
	Store     memory.Store
	Profiles  *memory.Profiles
	Style     generate.Style
	Rand      chance.Source
	Events    *events.Bus
}

// Orchestrator handles one account.
type Orchestrator struct {
	account  string
	channels map[string]ChannelConfig
	settings Settings
	deps     Deps
	log      *slog.Logger

	history *memory.History
	windows *memory.Windows

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu           sync.Mutex
	lastActivity map[string]time.Time
	reactions    map[string]*reactionState
	answered     int
}

// New creates an orchestrator for account.
func New(account string, channels []ChannelConfig, settings Settings, deps Deps) *Orchestrator {
	o := &Orchestrator{
		account:      account,
		channels:     make(map[string]ChannelConfig, len(channels)),
		settings:     settings,
		deps:         deps,
		log:          slog.With("account", account),
		history:      memory.NewHistory(settings.HistorySize),
		windows:      memory.NewWindows(10, 5),
		now:          time.Now,
		sleep:        sleepCtx,
		lastActivity: make(map[string]time.Time),
		reactions:    make(map[string]*reactionState),
	}
	start := o.now()
	for _, c := range channels {
		o.channels[c.ID] = c
		// the first quiet check waits a full threshold after startup
		o.lastActivity[c.ID] = start
	}
	return o
}

// Account returns the account name.
func (o *Orchestrator) Account() string { return o.account }

// HandleMessage is the channel.MessageHandler for the account's client.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg channel.Message) error {
	self := o.deps.Client.Self()

	if reason := o.filter(msg, self); reason != "" {
		o.skip(msg, reason)
		return nil
	}
	chCfg := o.channels[msg.ChannelID]

	o.mu.Lock()
	o.lastActivity[msg.ChannelID] = o.now()
	o.mu.Unlock()

	if prefs := ExtractPreferences(msg.Content); len(prefs) > 0 && o.deps.Profiles != nil {
		if _, err := o.deps.Profiles.Merge(ctx, o.account, msg.AuthorID, prefs); err != nil {
			o.log.Error("save profile", "user", msg.AuthorID, "error", err)
		}
	}

	if IsLowValue(msg.Content) {
		o.skip(msg, "low value")
		return nil
	}

	o.history.Add(msg.ChannelID, msg.AuthorName+": "+msg.Content)
	o.windows.Add(msg.ChannelID, msg.AuthorID, msg.Content)
	o.log.Info("message received", "channel", o.label(chCfg), "user", msg.AuthorName, "content", truncate(msg.Content, 50))

	o.maybeReact(ctx, msg)

	directed := IsDirected(msg, self)

	if directed && AsksIfAutomated(msg.Content) {
		return o.enqueueDisclosure(ctx, msg, chCfg)
	}

	if directed {
		if o.deps.Rand.Float64() > o.settings.RespondToMention {
			o.skip(msg, "mention gate")
			return nil
		}
	} else if o.deps.Rand.Float64() > o.settings.RespondToGeneral {
		o.skip(msg, "general gate")
		return nil
	}
	if o.deps.Rand.Float64() < o.settings.SkipRate {
		o.skip(msg, "skip rate")
		return nil
	}

	answered, err := o.deps.Store.HasAnswered(ctx, o.account, msg.ID)
	if err != nil {
		o.log.Error("dedup lookup", "message", msg.ID, "error", err)
	}
	if answered {
		o.skip(msg, "already answered")
		return nil
	}

	if o.capReached() {
		o.skip(msg, "daily cap")
		return nil
	}

	return o.enqueueReply(msg, chCfg)
}

// filter returns why msg is ignored outright, or "".
func (o *Orchestrator) filter(msg channel.Message, self channel.Self) string {
	switch {
	case msg.AuthorID == self.ID:
		return "self"
	case msg.IsBot:
		return "bot author"
	case len(msg.Content) < o.settings.MinMessageLength:
		return "too short"
	case slices.Contains(o.settings.SkipKinds, msg.Kind):
		return "skipped kind"
	}
	c, ok := o.channels[msg.ChannelID]
	if !ok || !c.UseAI {
		return "channel not enabled"
	}
	return ""
}

func (o *Orchestrator) skip(msg channel.Message, reason string) {
	telemetry.CountMessage(o.account, "skipped")
	o.log.Debug("message skipped", "channel", msg.ChannelID, "message", msg.ID, "reason", reason)
	o.deps.Events.Publish(events.Event{
		Type:    events.TypeSkipped,
		Account: o.account,
		Channel: msg.ChannelID,
		User:    msg.AuthorName,
		Reason:  reason,
	})
}

func (o *Orchestrator) capReached() bool {
	if o.settings.MaxResponsesPerDay <= 0 {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.answered >= o.settings.MaxResponsesPerDay
}

// ResetDaily clears per-user windows, reaction counters and the daily
// response count.
func (o *Orchestrator) ResetDaily() {
	o.windows.Reset()
	o.mu.Lock()
	o.reactions = make(map[string]*reactionState)
	o.answered = 0
	o.mu.Unlock()
}

// Answered returns today's delivered reply count.
func (o *Orchestrator) Answered() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.answered
}

func (o *Orchestrator) label(c ChannelConfig) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
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
