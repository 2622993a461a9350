package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/generate"
	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/internal/queue"
	"github.com/nous-labs/murmur/internal/telemetry"
	"github.com/nous-labs/murmur/internal/vibe"
	"github.com/nous-labs/murmur/pkg/events"
)

// QuietSettings control conversation starts in idle channels.
type QuietSettings struct {
	Enabled      bool
	Interval     time.Duration // how often channels are checked
	Threshold    time.Duration // idle time before a channel counts as quiet
	Chance       float64       // probability of starting once quiet
	HistoryLimit int           // recent channel lines used to pick the topic
}

// DefaultQuietSettings returns the stock quiet-channel behaviour.
func DefaultQuietSettings() QuietSettings {
	return QuietSettings{
		Enabled:      true,
		Interval:     5 * time.Minute,
		Threshold:    300 * time.Second,
		Chance:       0.2,
		HistoryLimit: 5,
	}
}

// RunQuietSweep checks for quiet channels every Interval. Blocks until ctx
// is cancelled.
func (o *Orchestrator) RunQuietSweep(ctx context.Context) {
	q := o.settings.Quiet
	if !q.Enabled || q.Interval <= 0 {
		return
	}
	o.log.Info("quiet sweep started", "interval", q.Interval, "threshold", q.Threshold, "chance", q.Chance)

	ticker := time.NewTicker(q.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info("quiet sweep stopping")
			return
		case <-ticker.C:
			o.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single check over the account's channels and returns
// how many conversation starts were enqueued.
func (o *Orchestrator) SweepOnce(ctx context.Context) int {
	started := 0
	now := o.now()
	for id, c := range o.channels {
		if !c.UseAI {
			continue
		}
		o.mu.Lock()
		last := o.lastActivity[id]
		o.mu.Unlock()

		if now.Sub(last) <= o.settings.Quiet.Threshold {
			continue
		}
		if !chance.Roll(o.deps.Rand, o.settings.Quiet.Chance) {
			continue
		}
		if o.capReached() {
			continue
		}

		// the start counts as activity so an empty room is not spammed
		o.mu.Lock()
		o.lastActivity[id] = now
		o.mu.Unlock()

		if err := o.enqueueOpener(c); err != nil {
			o.log.Warn("quiet start", "channel", o.label(c), "error", err)
			continue
		}
		started++
	}
	return started
}

func (o *Orchestrator) enqueueOpener(c ChannelConfig) error {
	task := queue.Task{
		Channel: c.ID,
		Account: o.account,
		Run: func(ctx context.Context) error {
			return o.open(ctx, c)
		},
	}
	if err := o.deps.Queue.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue opener: %w", err)
	}
	return nil
}

// open generates and posts a conversation starter for c.
func (o *Orchestrator) open(ctx context.Context, c ChannelConfig) error {
	lines := o.history.Lines(c.ID)
	if n := o.settings.Quiet.HistoryLimit; n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		_, text, _ := strings.Cut(line, ": ")
		texts = append(texts, text)
	}
	topic, sentiment := vibe.Dominant(texts)
	v := vibe.Context{
		Topic:     topic,
		Sentiment: sentiment,
		Mood:      vibe.PickMood(o.deps.Rand, sentiment),
		Shape:     vibe.PickShape(o.deps.Rand),
	}

	persona := vibe.PersonaNormal
	if o.settings.Personas {
		persona = vibe.PersonaFor(c.Name)
	}
	system, prompt := o.deps.Style.Opener(strings.Join(lines, "\n"), persona, v)

	text, err := o.deps.Generator.Generate(ctx, generate.Request{
		Account: o.account,
		Label:   o.label(c),
		System:  system,
		Prompt:  prompt,
		Vibe:    v,
	})
	if err != nil || text == "" {
		o.dropped(c.ID, err)
		return nil
	}

	if ok, err := o.post(ctx, c, text, ""); !ok {
		return err
	}

	telemetry.CountQuietStart()
	o.log.Info("started conversation", "channel", o.label(c), "topic", topic, "text", text)
	o.deps.Events.Publish(events.Event{Type: events.TypeQuiet, Account: o.account, Channel: c.ID, Text: text})

	if err := o.deps.Store.Append(ctx, o.account, memory.Exchange{
		Author:      memory.AuthorSystem,
		Content:     "quiet channel start",
		BotResponse: text,
		Topic:       string(topic),
	}); err != nil {
		o.log.Error("record quiet start", "channel", c.ID, "error", err)
	}

	o.mu.Lock()
	o.lastActivity[c.ID] = o.now()
	o.mu.Unlock()
	return nil
}
