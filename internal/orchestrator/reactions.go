package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/telemetry"
	"github.com/nous-labs/murmur/pkg/channel"
	"github.com/nous-labs/murmur/pkg/events"
)

// ReactionSettings control emoji reactions to inbound messages.
type ReactionSettings struct {
	Enabled    bool
	Chance     float64
	Cooldown   time.Duration // per user
	MaxPerUser int           // per day
}

// DefaultReactionSettings leaves reactions off.
func DefaultReactionSettings() ReactionSettings {
	return ReactionSettings{Enabled: false, Chance: 0.3, Cooldown: 30 * time.Second, MaxPerUser: 5}
}

type reactionState struct {
	last  time.Time
	count int
}

var reactionTable = []struct {
	keywords []string
	emoji    string
}{
	{[]string{"lol", "haha", "funny", "joke"}, "😂"},
	{[]string{"?", "what", "how", "why", "when"}, "❓"},
	{[]string{"good", "great", "awesome", "nice", "cool"}, "👍"},
	{[]string{"bad", "sad", "unfortunately", "sorry"}, "😢"},
	{[]string{"wow", "amazing", "incredible", "fantastic"}, "😲"},
}

var fallbackReactions = []string{"👍", "😄", "👀", "💯", "✨", "🚀"}

// ReactionEmoji picks the emoji for content: the first keyword row that
// matches, otherwise a random fallback.
func ReactionEmoji(src chance.Source, content string) string {
	lower := strings.ToLower(content)
	for _, row := range reactionTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.emoji
			}
		}
	}
	return chance.Pick(src, fallbackReactions)
}

func (o *Orchestrator) shouldReact(userID string) bool {
	rs := o.settings.Reactions
	if !rs.Enabled || o.deps.Rand.Float64() > rs.Chance {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.reactions[userID]
	if !ok {
		return true
	}
	if o.now().Sub(st.last) < rs.Cooldown {
		return false
	}
	return st.count < rs.MaxPerUser
}

func (o *Orchestrator) maybeReact(ctx context.Context, msg channel.Message) {
	if !o.shouldReact(msg.AuthorID) {
		return
	}
	emoji := ReactionEmoji(o.deps.Rand, msg.Content)
	if err := o.deps.Client.React(ctx, msg.ChannelID, msg.ID, emoji); err != nil {
		if !errors.Is(err, channel.ErrUnsupported) {
			o.log.Warn("add reaction", "channel", msg.ChannelID, "error", err)
		}
		return
	}

	o.mu.Lock()
	st, ok := o.reactions[msg.AuthorID]
	if !ok {
		st = &reactionState{}
		o.reactions[msg.AuthorID] = st
	}
	st.last = o.now()
	st.count++
	o.mu.Unlock()

	telemetry.CountReaction()
	o.log.Info("reacted", "user", msg.AuthorName, "emoji", emoji)
	o.deps.Events.Publish(events.Event{
		Type:    events.TypeReacted,
		Account: o.account,
		Channel: msg.ChannelID,
		User:    msg.AuthorName,
		Text:    emoji,
	})
}
