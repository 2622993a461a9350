package config

import (
	"time"

	"github.com/nous-labs/murmur/internal/credentials"
	"github.com/nous-labs/murmur/internal/generate"
	"github.com/nous-labs/murmur/internal/humanize"
	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/internal/orchestrator"
	"github.com/nous-labs/murmur/internal/queue"
	"github.com/nous-labs/murmur/pkg/channel"
)

// Default returns the stock configuration. Files are decoded over it, so
// anything a file leaves out keeps these values.
func Default() *Config {
	orch := orchestrator.DefaultSettings()
	gen := generate.DefaultConfig()
	q := queue.DefaultConfig()
	h := humanize.DefaultOptions()

	return &Config{
		AI: AIConfig{
			MinMessageLength:    orch.MinMessageLength,
			SkipRate:            orch.SkipRate,
			RespondToGeneral:    orch.RespondToGeneral,
			RespondToMention:    orch.RespondToMention,
			HistorySize:         orch.HistorySize,
			MemoryContext:       orch.MemoryContext,
			MinReplyWords:       1,
			MaxReplyWords:       10,
			MaxResponsesPerDay:  orch.MaxResponsesPerDay,
			ReplyStyle:          orch.ReplyStyle,
			APIKeyRotation:      true,
			PersonaEnabled:      orch.Personas,
			AddReactions:        orch.Reactions.Enabled,
			ReactionChance:      orch.Reactions.Chance,
			ReactionCooldown:    Duration(orch.Reactions.Cooldown),
			MaxReactionsPerUser: orch.Reactions.MaxPerUser,
			QuietEnabled:        orch.Quiet.Enabled,
			QuietChance:         orch.Quiet.Chance,
			QuietThreshold:      Duration(orch.Quiet.Threshold),
			QuietInterval:       Duration(orch.Quiet.Interval),
			DisclosureReply:     orch.DisclosureReply,
		},
		API: APIConfig{
			RetryCount:  gen.Attempts,
			Timeout:     Duration(gen.AttemptTimeout),
			MaxTokens:   gen.MaxTokens,
			Temperature: gen.Temperature,
			TopP:        gen.TopP,
			Backoff:     Duration(gen.Backoff),
			RateLimit:   30,
			RateWindow:  Duration(time.Minute),
		},
		Queue: QueueConfig{
			Enabled:      q.Enabled,
			PreDelayMin:  Duration(q.PreDelayMin),
			PreDelayMax:  Duration(q.PreDelayMax),
			PostDelayMin: Duration(q.PostDelayMin),
			PostDelayMax: Duration(q.PostDelayMax),
			TaskTimeout:  Duration(q.TaskTimeout),
		},
		Humanize: HumanizeConfig{
			Sanitize:             h.Sanitize,
			Disfluency:           h.Disfluency,
			DisfluencyChance:     h.DisfluencyChance,
			SelfCorrection:       h.SelfCorrection,
			SelfCorrectionChance: h.SelfCorrectionChance,
			Typos:                h.Typos,
			TypoChance:           h.TypoChance,
			Emoji:                h.Emoji,
			EmojiChance:          h.EmojiChance,
			BannedWords:          h.BannedWords,
			VaryTypingSpeed:      orch.VaryTyping,
			TypingVariation:      orch.TypingVariation,
		},
		Greeting: GreetingConfig{
			Enabled:  false,
			Time:     "09:00",
			Timezone: "UTC",
			Message:  "gm",
		},
		Memory: MemoryConfig{
			Driver:    envOr("MURMUR_MEMORY_DRIVER", DriverSQLite),
			Dir:       envOr("MURMUR_DATA_DIR", "data"),
			DSN:       envOr("MURMUR_PG_URL", ""),
			Retention: Duration(memory.DefaultRetention),
		},
		HTTPAddr:   envOr("MURMUR_HTTP_ADDR", ":9090"),
		SocketPath: envOr("MURMUR_SOCKET_PATH", ""),
		LogLevel:   envOr("MURMUR_LOG_LEVEL", "info"),
	}
}

// Settings returns the orchestrator settings.
func (c *Config) Settings() orchestrator.Settings {
	s := orchestrator.DefaultSettings()
	s.MinMessageLength = c.AI.MinMessageLength
	s.SkipKinds = []channel.Kind{channel.KindSystem}
	s.RespondToMention = c.AI.RespondToMention
	s.RespondToGeneral = c.AI.RespondToGeneral
	s.SkipRate = c.AI.SkipRate
	s.HistorySize = c.AI.HistorySize
	s.MemoryContext = c.AI.MemoryContext
	s.ReplyStyle = c.AI.ReplyStyle
	s.MaxResponsesPerDay = c.AI.MaxResponsesPerDay
	s.Personas = c.AI.PersonaEnabled
	s.VaryTyping = c.Humanize.VaryTypingSpeed
	s.TypingVariation = c.Humanize.TypingVariation
	s.Reactions = orchestrator.ReactionSettings{
		Enabled:    c.AI.AddReactions,
		Chance:     c.AI.ReactionChance,
		Cooldown:   c.AI.ReactionCooldown.D(),
		MaxPerUser: c.AI.MaxReactionsPerUser,
	}
	s.Quiet.Enabled = c.AI.QuietEnabled
	s.Quiet.Chance = c.AI.QuietChance
	s.Quiet.Threshold = c.AI.QuietThreshold.D()
	s.Quiet.Interval = c.AI.QuietInterval.D()
	if c.AI.DisclosureReply != "" {
		s.DisclosureReply = c.AI.DisclosureReply
	}
	return s
}

// Style returns the prompt settings.
func (c *Config) Style() generate.Style {
	return generate.Style{
		MinWords:    c.AI.MinReplyWords,
		MaxWords:    c.AI.MaxReplyWords,
		BannedWords: c.Humanize.BannedWords,
		Personas:    c.AI.PersonaEnabled,
	}
}

// GenerateConfig returns the generation loop settings.
func (c *Config) GenerateConfig() generate.Config {
	return generate.Config{
		Attempts:       c.API.RetryCount,
		AttemptTimeout: c.API.Timeout.D(),
		MaxTokens:      c.API.MaxTokens,
		Temperature:    c.API.Temperature,
		TopP:           c.API.TopP,
		Backoff:        c.API.Backoff.D(),
	}
}

// QueueConfig returns the scheduler settings.
func (c *Config) QueueConfig() queue.Config {
	return queue.Config{
		Enabled:      c.Queue.Enabled,
		PreDelayMin:  c.Queue.PreDelayMin.D(),
		PreDelayMax:  c.Queue.PreDelayMax.D(),
		PostDelayMin: c.Queue.PostDelayMin.D(),
		PostDelayMax: c.Queue.PostDelayMax.D(),
		TaskTimeout:  c.Queue.TaskTimeout.D(),
	}
}

// HumanizeOptions returns the output pipeline settings.
func (c *Config) HumanizeOptions() humanize.Options {
	return humanize.Options{
		Sanitize:             c.Humanize.Sanitize,
		Disfluency:           c.Humanize.Disfluency,
		SelfCorrection:       c.Humanize.SelfCorrection,
		Typos:                c.Humanize.Typos,
		Emoji:                c.Humanize.Emoji,
		DisfluencyChance:     c.Humanize.DisfluencyChance,
		SelfCorrectionChance: c.Humanize.SelfCorrectionChance,
		TypoChance:           c.Humanize.TypoChance,
		EmojiChance:          c.Humanize.EmojiChance,
		BannedWords:          c.Humanize.BannedWords,
	}
}

// Limiters returns the per-account rate limiters.
func (c *Config) Limiters() *credentials.Limiters {
	return credentials.NewLimiters(c.API.RateLimit, c.API.RateWindow.D())
}

// ChannelConfigs converts an account's channel list.
func (a AccountConfig) ChannelConfigs() []orchestrator.ChannelConfig {
	out := make([]orchestrator.ChannelConfig, 0, len(a.Channels))
	for _, ch := range a.Channels {
		out = append(out, orchestrator.ChannelConfig{ID: ch.ID, Name: ch.Name, UseAI: ch.UseAI})
	}
	return out
}
