// Package channel defines the interface for messaging platforms.
// Channels are how murmur talks to the world: Matrix, Slack, Twitch chat.
package channel

import (
	"context"
	"errors"
	"time"
)

// ErrDeliveryBlocked is returned by SendText when the platform refused the
// message (moderation, permissions, filters). Blocked replies are not
// recorded as answered.
var ErrDeliveryBlocked = errors.New("delivery blocked by platform")

// ErrUnsupported is returned for primitives a platform lacks.
var ErrUnsupported = errors.New("not supported by this platform")

// Kind classifies an inbound event.
type Kind string

const (
	KindText   Kind = "text"
	KindNotice Kind = "notice"
	KindEmote  Kind = "emote"
	KindSystem Kind = "system" // joins, pins, topic changes, thread starters
)

// Message represents an incoming message from any channel.
type Message struct {
	// ID is the platform message identifier.
	ID string

	AuthorID   string
	AuthorName string

	// IsBot is set for messages the platform marks as automated.
	IsBot bool

	Content string

	// ChannelID is the platform room/conversation identifier.
	ChannelID string

	// Mentions lists the user IDs mentioned in the message.
	Mentions []string

	Kind Kind

	// IsDirect marks one-to-one conversations.
	IsDirect bool

	Timestamp time.Time
}

// Mentioned reports whether userID appears in Mentions.
func (m Message) Mentioned(userID string) bool {
	for _, id := range m.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// Self identifies the account a Client is logged in as.
type Self struct {
	ID       string
	Username string
}

// Client is the interface for one logged-in messaging account.
type Client interface {
	// Name returns the platform identifier (e.g., "matrix").
	Name() string

	// Self returns the account identity. Valid once Start has connected.
	Self() Self

	// Start begins listening for messages. Blocks until ctx is cancelled.
	// Received messages are sent to the handler function.
	Start(ctx context.Context, handler MessageHandler) error

	// SendText posts text to channelID, threaded as a reply to replyTo when
	// it is non-empty and the platform supports it.
	SendText(ctx context.Context, channelID, text, replyTo string) (messageID string, err error)

	// SendTyping shows a typing indicator in channelID.
	SendTyping(ctx context.Context, channelID string) error

	// React adds emoji to a message.
	React(ctx context.Context, channelID, messageID, emoji string) error

	// Stop gracefully shuts down the client.
	Stop() error
}

// MessageHandler is called when a message is received from any channel.
type MessageHandler func(ctx context.Context, msg Message) error
