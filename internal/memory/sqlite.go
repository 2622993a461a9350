package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memory (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id   TEXT UNIQUE,
	author       TEXT NOT NULL,
	content      TEXT NOT NULL,
	bot_response TEXT,
	timestamp    INTEGER NOT NULL,
	topic        TEXT NOT NULL DEFAULT 'general'
);
CREATE INDEX IF NOT EXISTS idx_memory_timestamp ON memory(timestamp);
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id      TEXT PRIMARY KEY,
	profile_data TEXT NOT NULL,
	last_seen    INTEGER NOT NULL
);`

// SQLiteStore keeps one database file per account under dir.
type SQLiteStore struct {
	dir       string
	retention time.Duration
	now       func() time.Time

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// OpenSQLite prepares a store rooted at dir, creating it if needed.
// Databases are opened lazily per account.
func OpenSQLite(dir string, retention time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &SQLiteStore{
		dir:       dir,
		retention: retention,
		now:       time.Now,
		dbs:       make(map[string]*sql.DB),
	}, nil
}

// DBPath returns the file backing account.
func (s *SQLiteStore) DBPath(account string) string {
	name := strings.Join(strings.Fields(account), "_")
	return filepath.Join(s.dir, "conversations_"+name+".db")
}

func (s *SQLiteStore) db(ctx context.Context, account string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[account]; ok {
		return db, nil
	}

	path := s.DBPath(account)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init memory db %s: %w", path, err)
	}
	s.dbs[account] = db
	slog.Info("memory database opened", "account", account, "path", path)
	return db, nil
}

func (s *SQLiteStore) Append(ctx context.Context, account string, e Exchange) error {
	db, err := s.db(ctx, account)
	if err != nil {
		return err
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	topic := e.Topic
	if topic == "" {
		topic = "general"
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO memory (message_id, author, content, bot_response, timestamp, topic)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(e.MessageID), e.Author, e.Content, nullIfEmpty(e.BotResponse), ts.UnixMilli(), topic)
	if err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}

	cutoff := s.now().Add(-s.retention).UnixMilli()
	if _, err := db.ExecContext(ctx, `DELETE FROM memory WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("purge exchanges: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentHistory(ctx context.Context, account string, limit int) ([]Exchange, error) {
	db, err := s.db(ctx, account)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(message_id, ''), author, content, COALESCE(bot_response, ''), timestamp, topic
		FROM memory ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var ms int64
		if err := rows.Scan(&e.MessageID, &e.Author, &e.Content, &e.BotResponse, &ms, &e.Topic); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Timestamp = time.UnixMilli(ms)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	reverse(out)
	return out, nil
}

func (s *SQLiteStore) HasAnswered(ctx context.Context, account, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	db, err := s.db(ctx, account)
	if err != nil {
		return false, err
	}
	var resp sql.NullString
	err = db.QueryRowContext(ctx, `SELECT bot_response FROM memory WHERE message_id = ?`, messageID).Scan(&resp)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check answered: %w", err)
	}
	return resp.Valid && resp.String != "", nil
}

func (s *SQLiteStore) LoadProfiles(ctx context.Context, account string) (map[string]Profile, error) {
	db, err := s.db(ctx, account)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT user_id, profile_data, last_seen FROM user_profiles`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]Profile)
	for rows.Next() {
		var userID, data string
		var ms int64
		if err := rows.Scan(&userID, &data, &ms); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		prefs := make(map[string]string)
		if err := json.Unmarshal([]byte(data), &prefs); err != nil {
			slog.Warn("skipping unreadable profile", "account", account, "user", userID, "error", err)
			continue
		}
		profiles[userID] = Profile{UserID: userID, Preferences: prefs, LastSeen: time.UnixMilli(ms)}
	}
	return profiles, rows.Err()
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, account string, p Profile) error {
	db, err := s.db(ctx, account)
	if err != nil {
		return err
	}
	data, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	seen := p.LastSeen
	if seen.IsZero() {
		seen = s.now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, profile_data, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET profile_data = excluded.profile_data, last_seen = excluded.last_seen`,
		p.UserID, string(data), seen.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.UserID, err)
	}
	return nil
}

// Close closes every opened account database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for account, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", account, err))
		}
	}
	s.dbs = make(map[string]*sql.DB)
	return errors.Join(errs...)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
