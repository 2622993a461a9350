package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps every account in one database, partitioned by an
// account column.
type PostgresStore struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

// OpenPostgres connects, verifies the connection and creates the schema.
func OpenPostgres(ctx context.Context, pgURL string, retention time.Duration) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &PostgresStore{pool: pool, retention: retention}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS murmur_memory (
			id           BIGSERIAL PRIMARY KEY,
			account      TEXT NOT NULL,
			message_id   TEXT,
			author       TEXT NOT NULL,
			content      TEXT NOT NULL,
			bot_response TEXT,
			ts           TIMESTAMPTZ NOT NULL DEFAULT now(),
			topic        TEXT NOT NULL DEFAULT 'general',
			UNIQUE (account, message_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create memory table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_murmur_memory_ts ON murmur_memory (account, ts DESC)`)
	if err != nil {
		return fmt.Errorf("create memory index: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS murmur_user_profiles (
			account      TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			profile_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			last_seen    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (account, user_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}
	slog.Info("memory store initialized", "driver", "postgres")
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, account string, e Exchange) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	topic := e.Topic
	if topic == "" {
		topic = "general"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO murmur_memory (account, message_id, author, content, bot_response, ts, topic)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account, message_id) DO NOTHING
	`, account, nullIfEmpty(e.MessageID), e.Author, e.Content, nullIfEmpty(e.BotResponse), ts, topic)
	if err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM murmur_memory WHERE account = $1 AND ts < $2`,
		account, time.Now().Add(-s.retention))
	if err != nil {
		return fmt.Errorf("purge exchanges: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentHistory(ctx context.Context, account string, limit int) ([]Exchange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(message_id, ''), author, content, COALESCE(bot_response, ''), ts, topic
		FROM murmur_memory WHERE account = $1
		ORDER BY ts DESC, id DESC LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Exchange, error) {
		var e Exchange
		err := row.Scan(&e.MessageID, &e.Author, &e.Content, &e.BotResponse, &e.Timestamp, &e.Topic)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	reverse(out)
	return out, nil
}

func (s *PostgresStore) HasAnswered(ctx context.Context, account, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var resp *string
	err := s.pool.QueryRow(ctx,
		`SELECT bot_response FROM murmur_memory WHERE account = $1 AND message_id = $2`,
		account, messageID).Scan(&resp)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check answered: %w", err)
	}
	return resp != nil && *resp != "", nil
}

func (s *PostgresStore) LoadProfiles(ctx context.Context, account string) (map[string]Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, profile_data, last_seen FROM murmur_user_profiles WHERE account = $1`, account)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := make(map[string]Profile)
	for rows.Next() {
		var p Profile
		var data []byte
		if err := rows.Scan(&p.UserID, &data, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if err := json.Unmarshal(data, &p.Preferences); err != nil {
			slog.Warn("skipping unreadable profile", "account", account, "user", p.UserID, "error", err)
			continue
		}
		profiles[p.UserID] = p
	}
	return profiles, rows.Err()
}

// UpsertProfile merges p's preferences into the stored document.
func (s *PostgresStore) UpsertProfile(ctx context.Context, account string, p Profile) error {
	data, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	seen := p.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO murmur_user_profiles (account, user_id, profile_data, last_seen)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (account, user_id) DO UPDATE
		SET profile_data = murmur_user_profiles.profile_data || EXCLUDED.profile_data,
			last_seen = EXCLUDED.last_seen
	`, account, p.UserID, string(data), seen)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.UserID, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
