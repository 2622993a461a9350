package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nous-labs/murmur/internal/generate"
	"github.com/nous-labs/murmur/internal/humanize"
	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/internal/queue"
	"github.com/nous-labs/murmur/internal/telemetry"
	"github.com/nous-labs/murmur/internal/vibe"
	"github.com/nous-labs/murmur/pkg/channel"
	"github.com/nous-labs/murmur/pkg/events"
)

func (o *Orchestrator) enqueueReply(msg channel.Message, chCfg ChannelConfig) error {
	persona := vibe.PersonaNormal
	if o.settings.Personas {
		persona = vibe.PersonaFor(chCfg.Name)
	}
	task := queue.Task{
		Channel:   msg.ChannelID,
		Account:   o.account,
		UserID:    msg.AuthorID,
		MessageID: msg.ID,
		Run: func(ctx context.Context) error {
			return o.reply(ctx, msg, chCfg, persona)
		},
	}
	return o.enqueue(task, msg)
}

func (o *Orchestrator) enqueueDisclosure(ctx context.Context, msg channel.Message, chCfg ChannelConfig) error {
	answered, err := o.deps.Store.HasAnswered(ctx, o.account, msg.ID)
	if err != nil {
		o.log.Error("dedup lookup", "message", msg.ID, "error", err)
	}
	if answered {
		o.skip(msg, "already answered")
		return nil
	}
	task := queue.Task{
		Channel:   msg.ChannelID,
		Account:   o.account,
		UserID:    msg.AuthorID,
		MessageID: msg.ID,
		Run: func(ctx context.Context) error {
			return o.deliver(ctx, msg, chCfg, o.settings.DisclosureReply, vibe.DetectTopic(msg.Content))
		},
	}
	return o.enqueue(task, msg)
}

func (o *Orchestrator) enqueue(task queue.Task, msg channel.Message) error {
	if err := o.deps.Queue.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue reply: %w", err)
	}
	telemetry.CountMessage(o.account, "queued")
	o.deps.Events.Publish(events.Event{
		Type:    events.TypeQueued,
		Account: o.account,
		Channel: msg.ChannelID,
		User:    msg.AuthorName,
	})
	return nil
}

// reply runs inside the channel queue: derive context, generate, deliver.
func (o *Orchestrator) reply(ctx context.Context, msg channel.Message, chCfg ChannelConfig, persona vibe.Persona) error {
	v := vibe.Derive(o.deps.Rand, msg.Content)

	var memCtx string
	if hist, err := o.deps.Store.RecentHistory(ctx, o.account, o.settings.MemoryContext); err != nil {
		o.log.Warn("load memory context", "error", err)
	} else {
		memCtx = memory.FormatHistory(hist)
	}

	var prefs map[string]string
	if o.deps.Profiles != nil {
		prefs = o.deps.Profiles.Get(o.account, msg.AuthorID).Preferences
	}

	system, prompt := o.deps.Style.Reply(generate.ReplyInput{
		Username:    msg.AuthorName,
		Message:     msg.Content,
		Preferences: prefs,
		Recent:      o.history.Lines(msg.ChannelID),
		UserMemory:  o.windows.Recent(msg.ChannelID, msg.AuthorID),
		Memory:      memCtx,
		Persona:     persona,
		Vibe:        v,
	})

	text, err := o.deps.Generator.Generate(ctx, generate.Request{
		Account: o.account,
		Label:   o.label(chCfg),
		System:  system,
		Prompt:  prompt,
		Vibe:    v,
	})
	if err != nil || text == "" {
		o.dropped(msg.ChannelID, err)
		return nil
	}
	return o.deliver(ctx, msg, chCfg, text, v.Topic)
}

// deliver posts text as a reply to msg. Only delivered replies are
// recorded as answered.
func (o *Orchestrator) deliver(ctx context.Context, msg channel.Message, chCfg ChannelConfig, text string, topic vibe.Topic) error {
	body, replyTo := text, msg.ID
	if o.settings.ReplyStyle == StyleMention {
		body, replyTo = "@"+msg.AuthorName+" "+text, ""
	}
	ok, err := o.post(ctx, chCfg, body, replyTo)
	if !ok {
		return err
	}

	o.mu.Lock()
	o.answered++
	o.mu.Unlock()
	telemetry.CountReply(o.account, "delivered")
	o.log.Info("replied", "channel", o.label(chCfg), "user", msg.AuthorName, "text", text)
	o.deps.Events.Publish(events.Event{
		Type:    events.TypeDelivered,
		Account: o.account,
		Channel: msg.ChannelID,
		User:    msg.AuthorName,
		Text:    text,
	})

	if err := o.deps.Store.Append(ctx, o.account, memory.Exchange{
		MessageID:   msg.ID,
		Author:      msg.AuthorName,
		Content:     msg.Content,
		BotResponse: text,
		Topic:       string(topic),
	}); err != nil {
		o.log.Error("record exchange", "message", msg.ID, "error", err)
	}
	return nil
}

// post shows typing, waits out the typing time and sends text. It reports
// whether the platform accepted the message; a refusal is logged and
// published but is not an error.
func (o *Orchestrator) post(ctx context.Context, c ChannelConfig, text, replyTo string) (bool, error) {
	if err := o.deps.Client.SendTyping(ctx, c.ID); err != nil && !errors.Is(err, channel.ErrUnsupported) {
		o.log.Debug("typing indicator", "channel", c.ID, "error", err)
	}
	if err := o.sleep(ctx, o.typingDelay(text)); err != nil {
		return false, err
	}

	_, err := o.deps.Client.SendText(ctx, c.ID, text, replyTo)
	if errors.Is(err, channel.ErrDeliveryBlocked) {
		telemetry.CountReply(o.account, "blocked")
		o.log.Error("message blocked", "channel", o.label(c), "text", text)
		o.deps.Events.Publish(events.Event{Type: events.TypeBlocked, Account: o.account, Channel: c.ID, Text: text})
		return false, nil
	}
	if err != nil {
		telemetry.CountReply(o.account, "error")
		return false, fmt.Errorf("send message: %w", err)
	}
	return true, nil
}

func (o *Orchestrator) typingDelay(text string) time.Duration {
	d := humanize.TypingTime(text)
	if o.settings.VaryTyping {
		d = humanize.VariedDelay(o.deps.Rand, d, o.settings.TypingVariation)
	}
	return d
}

func (o *Orchestrator) dropped(channelID string, err error) {
	reason := "no output"
	if err != nil {
		reason = err.Error()
	}
	telemetry.CountReply(o.account, "dropped")
	o.log.Info("reply dropped", "channel", channelID, "reason", reason)
	o.deps.Events.Publish(events.Event{Type: events.TypeDropped, Account: o.account, Channel: channelID, Reason: reason})
}
