// Package matrix implements the Matrix messaging client using mautrix-go.
package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/nous-labs/murmur/pkg/channel"
)

// Config holds Matrix account configuration.
type Config struct {
	Account      string // murmur account name, used for state file names
	Homeserver   string
	UserID       string // localpart, e.g. "murmur"
	Password     string
	AccessToken  string // skips password login when set
	ServerName   string // e.g. "matrix.example.com"
	AllowedUsers []string
	DataDir      string
}

// Client implements channel.Client for Matrix.
type Client struct {
	config    Config
	client    *mautrix.Client
	handler   channel.MessageHandler
	startTime int64
	log       *slog.Logger

	mu      sync.Mutex
	members map[id.RoomID]int // joined member counts, for DM detection

	credFile string
}

// credentials holds saved Matrix login state.
type credentials struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
}

// New creates a Matrix client.
func New(cfg Config) *Client {
	name := "matrix_credentials.json"
	if cfg.Account != "" {
		name = "matrix_credentials_" + cfg.Account + ".json"
	}
	return &Client{
		config:   cfg,
		credFile: filepath.Join(cfg.DataDir, name),
		log:      slog.With("platform", "matrix", "account", cfg.Account),
		members:  make(map[id.RoomID]int),
	}
}

// Name returns the platform identifier.
func (c *Client) Name() string { return "matrix" }

func (c *Client) fullUserID() id.UserID {
	return id.NewUserID(c.config.UserID, c.config.ServerName)
}

// Self returns the logged-in identity.
func (c *Client) Self() channel.Self {
	uid := c.fullUserID()
	if c.client != nil && c.client.UserID != "" {
		uid = c.client.UserID
	}
	return channel.Self{ID: string(uid), Username: uid.Localpart()}
}

// Start connects to Matrix and begins listening for messages.
// Retries login with exponential backoff on failure.
func (c *Client) Start(ctx context.Context, handler channel.MessageHandler) error {
	c.handler = handler
	c.startTime = time.Now().UnixMilli()

	if c.config.DataDir != "" {
		if err := os.MkdirAll(c.config.DataDir, 0o755); err != nil {
			return fmt.Errorf("create matrix data dir: %w", err)
		}
	}

	fullUserID := c.fullUserID()
	client, err := mautrix.NewClient(c.config.Homeserver, fullUserID, c.config.AccessToken)
	if err != nil {
		return fmt.Errorf("create matrix client: %w", err)
	}
	c.client = client

	// In-memory sync store: a restart resyncs from now, older events are
	// dropped by the start time check anyway.
	client.Store = mautrix.NewMemorySyncStore()

	if c.config.AccessToken == "" {
		if err := c.loginWithRetry(ctx, fullUserID); err != nil {
			return err
		}
	}

	syncer := client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		c.onMessage(ctx, evt)
	})
	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		c.onMemberEvent(ctx, evt)
	})

	c.log.Info("matrix client ready, starting sync", "user", client.UserID)

	for {
		err := client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.log.Warn("matrix sync error, reconnecting in 15s", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(15 * time.Second):
			}
		}
	}
}

// loginWithRetry tries saved credentials first, then password login with
// exponential backoff.
func (c *Client) loginWithRetry(ctx context.Context, fullUserID id.UserID) error {
	if err := c.loadCredentials(); err == nil {
		c.log.Info("loaded saved Matrix credentials", "user", fullUserID)
		return nil
	}

	backoff := 2 * time.Second
	maxBackoff := 2 * time.Minute
	maxAttempts := 10

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.log.Info("logging into Matrix",
			"user", fullUserID,
			"homeserver", c.config.Homeserver,
			"attempt", attempt,
		)

		resp, err := c.client.Login(ctx, &mautrix.ReqLogin{
			Type: mautrix.AuthTypePassword,
			Identifier: mautrix.UserIdentifier{
				Type: mautrix.IdentifierTypeUser,
				User: c.config.UserID,
			},
			Password:         c.config.Password,
			StoreCredentials: true,
		})
		if err == nil {
			c.log.Info("logged into Matrix", "user", resp.UserID, "device", resp.DeviceID)
			c.saveCredentials(credentials{
				AccessToken: resp.AccessToken,
				UserID:      string(resp.UserID),
				DeviceID:    string(resp.DeviceID),
			})
			return nil
		}

		if errors.Is(err, mautrix.MForbidden) ||
			errors.Is(err, mautrix.MUnknownToken) ||
			errors.Is(err, mautrix.MInvalidParam) {
			return fmt.Errorf("matrix login: %w (non-retryable)", err)
		}
		if attempt == maxAttempts {
			return fmt.Errorf("matrix login: %w (after %d attempts)", err, maxAttempts)
		}

		c.log.Warn("matrix login failed, retrying",
			"error", err,
			"attempt", attempt,
			"backoff", backoff,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return fmt.Errorf("matrix login: exhausted retries")
}

const maxMessageLen = 4000

// SendText sends text to a room, threaded as a reply when replyTo is set.
// Long text is split and only the first chunk carries the reply relation.
func (c *Client) SendText(ctx context.Context, channelID, text, replyTo string) (string, error) {
	roomID := id.RoomID(channelID)
	chunks := splitMessage(text, maxMessageLen)

	var first id.EventID
	for i, chunk := range chunks {
		content := &event.MessageEventContent{MsgType: event.MsgText, Body: chunk}
		if i == 0 && replyTo != "" {
			content.RelatesTo = &event.RelatesTo{InReplyTo: &event.InReplyTo{EventID: id.EventID(replyTo)}}
		}
		resp, err := c.client.SendMessageEvent(ctx, roomID, event.EventMessage, content)
		if err != nil {
			c.log.Error("matrix send failed", "room", roomID, "chunk", i+1, "error", err)
			return string(first), mapSendError(err)
		}
		if i == 0 {
			first = resp.EventID
		}
		if i < len(chunks)-1 {
			time.Sleep(500 * time.Millisecond)
		}
	}
	c.log.Debug("matrix message sent", "room", roomID, "chunks", len(chunks), "len", len(text))
	return string(first), nil
}

// SendTyping shows the typing indicator for a few seconds.
func (c *Client) SendTyping(ctx context.Context, channelID string) error {
	_, err := c.client.UserTyping(ctx, id.RoomID(channelID), true, 5*time.Second)
	return err
}

// React annotates a message with emoji.
func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	_, err := c.client.SendReaction(ctx, id.RoomID(channelID), id.EventID(messageID), emoji)
	return mapSendError(err)
}

// Stop halts the sync loop.
func (c *Client) Stop() error {
	if c.client != nil {
		c.client.StopSync()
	}
	return nil
}

// mapSendError turns a homeserver refusal into channel.ErrDeliveryBlocked.
func mapSendError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mautrix.MForbidden) {
		return fmt.Errorf("%w: %w", channel.ErrDeliveryBlocked, err)
	}
	return err
}

func (c *Client) onMessage(ctx context.Context, evt *event.Event) {
	if evt.Timestamp < c.startTime {
		return
	}
	msg, ok := convert(evt)
	if !ok {
		return
	}
	msg.IsDirect = c.isDirect(ctx, evt.RoomID)

	c.log.Debug("matrix message received",
		"sender", evt.Sender,
		"room", evt.RoomID,
		"content", truncate(msg.Content, 100),
	)
	if err := c.handler(ctx, msg); err != nil {
		c.log.Error("message handler error", "error", err)
	}
}

// convert maps a room message event. Notices are flagged as bot output,
// which is how Matrix bots conventionally post.
func convert(evt *event.Event) (channel.Message, bool) {
	content := evt.Content.AsMessage()
	if content == nil || content.Body == "" {
		return channel.Message{}, false
	}
	msg := channel.Message{
		ID:         string(evt.ID),
		AuthorID:   string(evt.Sender),
		AuthorName: evt.Sender.Localpart(),
		Content:    content.Body,
		ChannelID:  string(evt.RoomID),
		Kind:       channel.KindText,
		Timestamp:  time.UnixMilli(evt.Timestamp),
	}
	switch content.MsgType {
	case event.MsgNotice:
		msg.Kind = channel.KindNotice
		msg.IsBot = true
	case event.MsgEmote:
		msg.Kind = channel.KindEmote
	case event.MsgText:
	default:
		// images, files, locations
		msg.Kind = channel.KindSystem
	}
	if content.Mentions != nil {
		for _, uid := range content.Mentions.UserIDs {
			msg.Mentions = append(msg.Mentions, string(uid))
		}
	}
	return msg, true
}

// isDirect reports whether the room has exactly two joined members.
func (c *Client) isDirect(ctx context.Context, roomID id.RoomID) bool {
	c.mu.Lock()
	n, ok := c.members[roomID]
	c.mu.Unlock()
	if !ok {
		resp, err := c.client.JoinedMembers(ctx, roomID)
		if err != nil {
			c.log.Debug("joined members lookup", "room", roomID, "error", err)
			return false
		}
		n = len(resp.Joined)
		c.mu.Lock()
		c.members[roomID] = n
		c.mu.Unlock()
	}
	return n == 2
}

func (c *Client) onMemberEvent(ctx context.Context, evt *event.Event) {
	member := evt.Content.AsMember()
	if member == nil {
		return
	}
	// membership changes invalidate the DM cache
	c.mu.Lock()
	delete(c.members, evt.RoomID)
	c.mu.Unlock()

	if evt.GetStateKey() != string(c.client.UserID) || member.Membership != event.MembershipInvite {
		return
	}
	if !c.isAllowed(evt.Sender) {
		c.log.Warn("rejecting invite from unauthorized user", "sender", evt.Sender)
		return
	}
	c.log.Info("accepting room invite", "room", evt.RoomID, "from", evt.Sender)
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		c.log.Error("failed to join room", "room", evt.RoomID, "error", err)
	}
}

func (c *Client) loadCredentials() error {
	data, err := os.ReadFile(c.credFile)
	if err != nil {
		return err
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}
	c.client.AccessToken = creds.AccessToken
	c.client.UserID = id.UserID(creds.UserID)
	c.client.DeviceID = id.DeviceID(creds.DeviceID)
	return nil
}

func (c *Client) saveCredentials(creds credentials) {
	data, _ := json.MarshalIndent(creds, "", "  ")
	if err := os.WriteFile(c.credFile, data, 0o600); err != nil {
		c.log.Warn("save matrix credentials", "error", err)
	}
}

func (c *Client) isAllowed(sender id.UserID) bool {
	if len(c.config.AllowedUsers) == 0 || c.config.AllowedUsers[0] == "" {
		return true
	}
	for _, allowed := range c.config.AllowedUsers {
		if string(sender) == allowed {
			return true
		}
	}
	return false
}

func splitMessage(s string, maxLen int) []string {
	var chunks []string
	for len(s) > maxLen {
		chunks = append(chunks, s[:maxLen])
		s = s[maxLen:]
	}
	if len(s) > 0 || len(chunks) == 0 {
		chunks = append(chunks, s)
	}
	return chunks
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
