package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "accounts": [
    {
      "name": "main",
      "platform": "matrix",
      "matrix": {"homeserver": "http://synapse:8008", "user_id": "murmur", "password": "$TEST_MATRIX_PASSWORD", "server_name": "example.org"},
      "channels": [{"id": "!games:example.org", "name": "games", "use_ai": true}]
    },
    {
      "name": "ops",
      "platform": "slack",
      "slack": {"bot_token": "xoxb-1", "app_token": "$TEST_SLACK_APP_TOKEN"},
      "channels": [{"id": "C1", "name": "general", "use_ai": false}]
    }
  ],
  "models": [
    {"name": "gemini", "provider": "google", "model_name": "gemini-2.0-flash", "api_key": "$TEST_GEMINI_KEY", "enabled": true},
    {"name": "spare", "provider": "openai", "endpoint": "https://api.example.com/v1", "model_name": "small", "api_key": "k", "enabled": false}
  ],
  "ai": {"skip_rate": 0.2, "reply_style": "mention", "quiet_threshold": "10m", "reaction_cooldown": 45},
  "api": {"timeout": "8s"},
  "memory": {"driver": "sqlite", "dir": "/var/lib/murmur"}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "murmur.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_MATRIX_PASSWORD", "hunter2")
	t.Setenv("TEST_SLACK_APP_TOKEN", "xapp-1")
	t.Setenv("TEST_GEMINI_KEY", "g-key")

	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "hunter2", cfg.Accounts[0].Matrix.Password)
	assert.Equal(t, "xapp-1", cfg.Accounts[1].Slack.AppToken)
	assert.Equal(t, "g-key", cfg.Models[0].APIKey)

	enabled := cfg.EnabledModels()
	require.Len(t, enabled, 1)
	assert.Equal(t, "gemini", enabled[0].Name)

	// overridden
	assert.Equal(t, 0.2, cfg.AI.SkipRate)
	assert.Equal(t, "mention", cfg.AI.ReplyStyle)
	assert.Equal(t, 10*time.Minute, cfg.AI.QuietThreshold.D())
	assert.Equal(t, 45*time.Second, cfg.AI.ReactionCooldown.D())
	assert.Equal(t, 8*time.Second, cfg.API.Timeout.D())

	// defaults kept
	assert.Equal(t, 0.9, cfg.AI.RespondToMention)
	assert.Equal(t, 3, cfg.API.RetryCount)
	assert.Equal(t, 30, cfg.API.RateLimit)
	assert.True(t, cfg.Queue.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Queue.TaskTimeout.D())
}

func TestUnresolvedEnvKeepsReference(t *testing.T) {
	assert.Equal(t, "$MURMUR_TEST_UNSET_VAR", resolveEnv("$MURMUR_TEST_UNSET_VAR"))
	assert.Equal(t, "plain", resolveEnv("plain"))
	assert.Equal(t, "$", resolveEnv("$"))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "{not json"))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadConfig(writeConfig(t, `{"api": {"timeout": "soon"}}`))
	assert.ErrorContains(t, err, "parse duration")
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []AccountConfig{
		{Name: "a", Platform: "irc", Channels: []ChannelConfig{{ID: "#x"}}},
		{Name: "a", Platform: "twitch", Twitch: &TwitchAccount{Username: "bot"}},
	}
	cfg.AI.SkipRate = 1.5
	cfg.AI.ReplyStyle = "shout"
	cfg.Memory.Driver = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"no enabled models",
		`unknown platform "irc"`,
		"duplicate name",
		"twitch username and oauth_token are required",
		"account a: no channels configured",
		"ai.skip_rate",
		`unknown style "shout"`,
		"memory.dsn is required",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestValidateRejectsClosedRateWindow(t *testing.T) {
	cfg := Default()
	cfg.API.RateLimit = 0
	cfg.API.RateWindow = 0
	cfg.API.RetryCount = 0

	err := cfg.Validate()
	assert.ErrorContains(t, err, "api.rate_limit")
	assert.ErrorContains(t, err, "api.rate_window must be positive")
	assert.ErrorContains(t, err, "api.retry_count")
}

func TestValidateNoAccounts(t *testing.T) {
	cfg := Default()
	assert.ErrorContains(t, cfg.Validate(), "no accounts configured")
}

func TestSettingsMapping(t *testing.T) {
	cfg := Default()
	cfg.AI.AddReactions = true
	cfg.AI.ReactionChance = 0.4
	cfg.AI.MaxResponsesPerDay = 7
	cfg.Humanize.VaryTypingSpeed = true

	s := cfg.Settings()
	assert.True(t, s.Reactions.Enabled)
	assert.Equal(t, 0.4, s.Reactions.Chance)
	assert.Equal(t, 7, s.MaxResponsesPerDay)
	assert.True(t, s.VaryTyping)
	assert.Equal(t, 5*time.Minute, s.Quiet.Interval)
	assert.NotEmpty(t, s.DisclosureReply)

	st := cfg.Style()
	assert.Equal(t, 1, st.MinWords)
	assert.Equal(t, 10, st.MaxWords)

	q := cfg.QueueConfig()
	assert.Equal(t, 2*time.Second, q.PreDelayMin)
	assert.Equal(t, 7*time.Second, q.PreDelayMax)
}

func TestGreetingSpec(t *testing.T) {
	spec, err := GreetingConfig{Time: "09:30", Timezone: "Africa/Tunis"}.Spec()
	require.NoError(t, err)
	assert.Equal(t, "CRON_TZ=Africa/Tunis 30 9 * * *", spec)

	_, err = GreetingConfig{Time: "9am", Timezone: "UTC"}.Spec()
	assert.Error(t, err)
	_, err = GreetingConfig{Time: "09:00", Timezone: "Mars/Olympus"}.Spec()
	assert.Error(t, err)
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.D())
	require.NoError(t, d.UnmarshalJSON([]byte(`2.5`)))
	assert.Equal(t, 2500*time.Millisecond, d.D())
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	out, err := Duration(3 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(out))
}
