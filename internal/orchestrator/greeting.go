package orchestrator

import (
	"context"
	"sort"

	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/internal/queue"
	"github.com/nous-labs/murmur/pkg/events"
)

// Greet queues text for every AI-enabled channel. It bypasses generation
// and the probability gates; the daily cap still applies. It returns how
// many greetings were queued.
func (o *Orchestrator) Greet(text string) int {
	if text == "" {
		return 0
	}
	ids := make([]string, 0, len(o.channels))
	for id, c := range o.channels {
		if c.UseAI {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	queued := 0
	for _, id := range ids {
		if o.capReached() {
			break
		}
		c := o.channels[id]
		err := o.deps.Queue.Enqueue(queue.Task{
			Channel: c.ID,
			Account: o.account,
			Run: func(ctx context.Context) error {
				if ok, err := o.post(ctx, c, text, ""); !ok {
					return err
				}
				o.log.Info("greeted", "channel", o.label(c))
				o.deps.Events.Publish(events.Event{Type: events.TypeGreeting, Account: o.account, Channel: c.ID, Text: text})
				if err := o.deps.Store.Append(ctx, o.account, memory.Exchange{
					Author:      memory.AuthorSystem,
					Content:     "scheduled greeting",
					BotResponse: text,
				}); err != nil {
					o.log.Error("record greeting", "channel", c.ID, "error", err)
				}
				o.mu.Lock()
				o.lastActivity[c.ID] = o.now()
				o.mu.Unlock()
				return nil
			},
		})
		if err != nil {
			o.log.Warn("queue greeting", "channel", o.label(c), "error", err)
			continue
		}
		queued++
	}
	return queued
}
