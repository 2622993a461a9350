// Package slack implements the Slack messaging client over Socket Mode.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nous-labs/murmur/pkg/channel"
)

// Config holds Slack account configuration.
type Config struct {
	Account  string
	BotToken string // xoxb-
	AppToken string // xapp-, required for Socket Mode
	APIURL   string // overrides the Web API base, for tests
}

// Client implements channel.Client for Slack.
type Client struct {
	config Config
	api    *slack.Client
	log    *slog.Logger

	mu    sync.Mutex
	self  channel.Self
	names map[string]string // user ID -> display name
}

// New creates a Slack client.
func New(cfg Config) *Client {
	opts := []slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Client{
		config: cfg,
		api:    slack.New(cfg.BotToken, opts...),
		log:    slog.With("platform", "slack", "account", cfg.Account),
		names:  make(map[string]string),
	}
}

// Name returns the platform identifier.
func (c *Client) Name() string { return "slack" }

// Self returns the bot user identity resolved at Start.
func (c *Client) Self() channel.Self {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Start authenticates, opens a Socket Mode connection and dispatches
// message events until ctx is cancelled.
func (c *Client) Start(ctx context.Context, handler channel.MessageHandler) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	c.mu.Lock()
	c.self = channel.Self{ID: auth.UserID, Username: auth.User}
	c.mu.Unlock()
	c.log.Info("slack client ready", "user", auth.User, "team", auth.Team)

	sm := socketmode.New(c.api)
	go c.listen(ctx, sm, handler)

	err = sm.RunContext(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) listen(ctx context.Context, sm *socketmode.Client, handler channel.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sm.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnecting:
				c.log.Debug("connecting to slack")
			case socketmode.EventTypeConnectionError:
				c.log.Warn("slack connection error, retrying")
			case socketmode.EventTypeEventsAPI:
				if evt.Request != nil {
					sm.Ack(*evt.Request)
				}
				api, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok || api.Type != slackevents.CallbackEvent {
					continue
				}
				// app mentions also arrive as plain message events
				if ev, ok := api.InnerEvent.Data.(*slackevents.MessageEvent); ok {
					c.dispatch(ctx, ev, handler)
				}
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, ev *slackevents.MessageEvent, handler channel.MessageHandler) {
	msg := convert(ev)
	if msg.AuthorID != "" && !msg.IsBot {
		msg.AuthorName = c.displayName(ctx, msg.AuthorID)
	}
	if err := handler(ctx, msg); err != nil {
		c.log.Error("message handler error", "error", err)
	}
}

var mentionRe = regexp.MustCompile(`<@([UW][A-Z0-9]+)(?:\|[^>]*)?>`)

// convert maps a Slack message event. The message timestamp is its ID.
func convert(ev *slackevents.MessageEvent) channel.Message {
	msg := channel.Message{
		ID:         ev.TimeStamp,
		AuthorID:   ev.User,
		AuthorName: ev.User,
		IsBot:      ev.BotID != "" || ev.SubType == slack.MsgSubTypeBotMessage,
		Content:    ev.Text,
		ChannelID:  ev.Channel,
		IsDirect:   ev.ChannelType == "im",
		Kind:       channel.KindText,
		Timestamp:  parseTS(ev.TimeStamp),
	}
	if ev.Username != "" {
		msg.AuthorName = ev.Username
	}
	switch ev.SubType {
	case "", "thread_broadcast", "file_share":
	case slack.MsgSubTypeMeMessage:
		msg.Kind = channel.KindEmote
	case slack.MsgSubTypeBotMessage:
		msg.Kind = channel.KindNotice
	default:
		// joins, topic changes, pins, edits, deletions
		msg.Kind = channel.KindSystem
	}
	for _, m := range mentionRe.FindAllStringSubmatch(ev.Text, -1) {
		if !slices.Contains(msg.Mentions, m[1]) {
			msg.Mentions = append(msg.Mentions, m[1])
		}
	}
	return msg
}

func parseTS(ts string) time.Time {
	sec, frac, _ := strings.Cut(ts, ".")
	s, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	us, _ := strconv.ParseInt(frac, 10, 64)
	return time.Unix(s, us*int64(time.Microsecond))
}

func (c *Client) displayName(ctx context.Context, userID string) string {
	c.mu.Lock()
	name, ok := c.names[userID]
	c.mu.Unlock()
	if ok {
		return name
	}
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		c.log.Debug("user lookup", "user", userID, "error", err)
		return userID
	}
	name = user.Profile.DisplayName
	if name == "" {
		name = user.Name
	}
	c.mu.Lock()
	c.names[userID] = name
	c.mu.Unlock()
	return name
}

// SendText posts text, in replyTo's thread when set.
func (c *Client) SendText(ctx context.Context, channelID, text, replyTo string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if replyTo != "" {
		opts = append(opts, slack.MsgOptionTS(replyTo))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", mapSendError(err)
	}
	return ts, nil
}

// SendTyping is not available to bot tokens over the Web API.
func (c *Client) SendTyping(context.Context, string) error {
	return channel.ErrUnsupported
}

// React adds a reaction. Slack takes emoji names, so only emoji with a
// known name are supported.
func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	name, ok := emojiNames[emoji]
	if !ok {
		return channel.ErrUnsupported
	}
	err := c.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channelID, messageID))
	return mapSendError(err)
}

// Stop is a no-op; the Socket Mode connection closes with Start's context.
func (c *Client) Stop() error { return nil }

var emojiNames = map[string]string{
	"😂": "joy",
	"❓": "question",
	"👍": "+1",
	"😢": "cry",
	"😲": "astonished",
	"😄": "smile",
	"👀": "eyes",
	"💯": "100",
	"✨": "sparkles",
	"🚀": "rocket",
}

// blockedCodes are Web API errors meaning the workspace refused the post.
var blockedCodes = []string{
	"restricted_action",
	"restricted_action_read_only_channel",
	"restricted_action_thread_only_channel",
	"restricted_action_non_threadable_channel",
	"is_archived",
	"not_in_channel",
	"channel_not_found",
	"cannot_reply_to_message",
	"posting_to_general_channel_denied",
	"ekm_access_denied",
}

func mapSendError(err error) error {
	if err == nil {
		return nil
	}
	code := err.Error()
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		code = se.Err
	}
	if slices.Contains(blockedCodes, code) {
		return fmt.Errorf("%w: %w", channel.ErrDeliveryBlocked, err)
	}
	return err
}
