// Package memory persists what the orchestrator has said and learned:
// delivered exchanges, used for dedup and prompt context, and per-user
// preference profiles. It also holds the in-process conversation windows.
package memory

import (
	"context"
	"strings"
	"time"
)

// AuthorSystem marks exchanges the generator recorded on its own behalf.
const AuthorSystem = "system"

// DefaultRetention is how long exchanges are kept.
const DefaultRetention = 24 * time.Hour

// Exchange is one recorded message and, when answered, the reply.
type Exchange struct {
	MessageID   string // empty for generator-recorded entries
	Author      string
	Content     string
	BotResponse string
	Timestamp   time.Time
	Topic       string
}

// Profile holds preferences extracted from a user's messages.
type Profile struct {
	UserID      string            `json:"user_id"`
	Preferences map[string]string `json:"preferences"`
	LastSeen    time.Time         `json:"last_seen"`
}

// Store is the persistence contract. Every method is scoped to an account;
// accounts never see each other's exchanges or profiles.
type Store interface {
	// Append records e and purges exchanges older than the retention horizon.
	// Appending a MessageID that already exists is a no-op.
	Append(ctx context.Context, account string, e Exchange) error
	// RecentHistory returns up to limit exchanges, oldest first.
	RecentHistory(ctx context.Context, account string, limit int) ([]Exchange, error)
	// HasAnswered reports whether messageID has a recorded reply.
	HasAnswered(ctx context.Context, account, messageID string) (bool, error)
	LoadProfiles(ctx context.Context, account string) (map[string]Profile, error)
	UpsertProfile(ctx context.Context, account string, p Profile) error
	Close() error
}

// FormatHistory renders exchanges as "author: content" lines.
func FormatHistory(history []Exchange) string {
	lines := make([]string, 0, len(history))
	for _, e := range history {
		lines = append(lines, e.Author+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}
