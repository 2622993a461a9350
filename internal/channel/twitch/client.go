// Package twitch implements the Twitch chat client over IRC.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/nous-labs/murmur/pkg/channel"
)

// Config holds Twitch account configuration.
type Config struct {
	Account    string
	Username   string
	OAuthToken string // "oauth:..."
	Channels   []string
	// KnownBots are logins treated as automated, e.g. nightbot.
	KnownBots []string
}

// DefaultKnownBots are common moderation and alert bots.
var DefaultKnownBots = []string{"nightbot", "streamelements", "moobot", "fossabot", "streamlabs"}

// ircClient is the subset of *twitch.Client used for sending.
type ircClient interface {
	Say(channel, text string)
	Reply(channel, parentMsgID, text string)
}

// Client implements channel.Client for Twitch chat.
type Client struct {
	config Config
	log    *slog.Logger

	mu  sync.Mutex
	irc *twitch.Client
	out ircClient
}

// New creates a Twitch client.
func New(cfg Config) *Client {
	if cfg.KnownBots == nil {
		cfg.KnownBots = DefaultKnownBots
	}
	return &Client{
		config: cfg,
		log:    slog.With("platform", "twitch", "account", cfg.Account),
	}
}

// Name returns the platform identifier.
func (c *Client) Name() string { return "twitch" }

// Self returns the login the client chats as. Twitch identifies chat users
// by login, so that is also the ID.
func (c *Client) Self() channel.Self {
	login := strings.ToLower(c.config.Username)
	return channel.Self{ID: login, Username: login}
}

// Start joins the configured channels and dispatches chat messages until
// ctx is cancelled.
func (c *Client) Start(ctx context.Context, handler channel.MessageHandler) error {
	irc := twitch.NewClient(c.config.Username, c.config.OAuthToken)
	c.mu.Lock()
	c.irc = irc
	c.out = irc
	c.mu.Unlock()

	irc.OnConnect(func() {
		c.log.Info("twitch chat connected", "channels", c.config.Channels)
	})
	irc.OnPrivateMessage(func(m twitch.PrivateMessage) {
		msg := c.convert(m)
		if err := handler(ctx, msg); err != nil {
			c.log.Error("message handler error", "error", err)
		}
	})
	irc.OnNoticeMessage(func(m twitch.NoticeMessage) {
		// refusals such as msg_banned or msg_followersonly arrive here
		c.log.Warn("twitch notice", "channel", m.Channel, "id", m.MsgID, "message", m.Message)
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			irc.Disconnect()
		case <-done:
		}
	}()
	defer close(done)

	irc.Join(c.config.Channels...)
	err := irc.Connect()
	if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("twitch connect: %w", err)
	}
	return nil
}

// convert maps a chat message. Twitch channel names are the channel IDs.
func (c *Client) convert(m twitch.PrivateMessage) channel.Message {
	login := strings.ToLower(m.User.Name)
	name := m.User.DisplayName
	if name == "" {
		name = m.User.Name
	}
	msg := channel.Message{
		ID:         m.ID,
		AuthorID:   login,
		AuthorName: name,
		IsBot:      slices.Contains(c.config.KnownBots, login),
		Content:    m.Message,
		ChannelID:  strings.ToLower(m.Channel),
		Mentions:   parseMentions(m.Message),
		Kind:       channel.KindText,
		Timestamp:  m.Time,
	}
	if m.Action {
		msg.Kind = channel.KindEmote
	}
	return msg
}

// parseMentions returns the lowercased logins of @name tokens.
func parseMentions(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		if !strings.HasPrefix(f, "@") {
			continue
		}
		name := strings.ToLower(strings.TrimRight(f[1:], ",.!?:;"))
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// SendText says text in the channel, as a threaded reply when replyTo is
// set. IRC gives no message ID back and refusals arrive later as notices,
// so delivery is never reported as blocked here.
func (c *Client) SendText(_ context.Context, channelID, text, replyTo string) (string, error) {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return "", errors.New("twitch client not connected")
	}
	if replyTo != "" {
		out.Reply(channelID, replyTo, text)
	} else {
		out.Say(channelID, text)
	}
	return "", nil
}

// SendTyping is not part of Twitch chat.
func (c *Client) SendTyping(context.Context, string) error { return channel.ErrUnsupported }

// React is not part of Twitch chat.
func (c *Client) React(context.Context, string, string, string) error {
	return channel.ErrUnsupported
}

// Stop disconnects from chat.
func (c *Client) Stop() error {
	c.mu.Lock()
	irc := c.irc
	c.mu.Unlock()
	if irc == nil {
		return nil
	}
	err := irc.Disconnect()
	if errors.Is(err, twitch.ErrConnectionIsNotOpen) {
		return nil
	}
	return err
}
