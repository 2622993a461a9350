package humanize

import (
	"time"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/vibe"
)

// Options toggles each stage and sets its probability.
type Options struct {
	Sanitize       bool
	Disfluency     bool
	SelfCorrection bool
	Typos          bool
	Emoji          bool

	DisfluencyChance     float64
	SelfCorrectionChance float64
	TypoChance           float64
	EmojiChance          float64

	BannedWords []string
}

// DefaultOptions enables every stage except typos.
func DefaultOptions() Options {
	return Options{
		Sanitize:             true,
		Disfluency:           true,
		SelfCorrection:       true,
		Typos:                false,
		Emoji:                true,
		DisfluencyChance:     0.15,
		SelfCorrectionChance: 0.10,
		TypoChance:           0.15,
		EmojiChance:          0.067,
		BannedWords:          DefaultBannedWords,
	}
}

// Pipeline runs the stages in a fixed order: sanitize, disfluency,
// self-correction, typo, emoji.
type Pipeline struct {
	opts      Options
	sanitizer *Sanitizer
	rng       chance.Source
}

// New builds a pipeline.
func New(opts Options, rng chance.Source) *Pipeline {
	return &Pipeline{opts: opts, sanitizer: NewSanitizer(opts.BannedWords), rng: rng}
}

// Apply humanizes text for a reply carrying mood.
func (p *Pipeline) Apply(text string, mood vibe.Mood) string {
	if p.opts.Sanitize {
		text = p.sanitizer.Sanitize(text)
	}
	if p.opts.Disfluency {
		text = AddDisfluency(p.rng, text, p.opts.DisfluencyChance)
	}
	if p.opts.SelfCorrection {
		text = AddSelfCorrection(p.rng, text, p.opts.SelfCorrectionChance)
	}
	if p.opts.Typos {
		text = AddTypo(p.rng, text, p.opts.TypoChance)
	}
	if p.opts.Emoji {
		text = AddEmoji(p.rng, text, mood, p.opts.EmojiChance)
	}
	return text
}

// TypingTime is how long composing text would take: three seconds plus a
// tenth of a second per word, capped at five.
func TypingTime(text string) time.Duration {
	secs := 3.0 + float64(WordCount(text))/10.0
	if secs > 5.0 {
		secs = 5.0
	}
	return time.Duration(secs * float64(time.Second))
}

// VariedDelay returns base spread uniformly by ±variation (a fraction).
func VariedDelay(src chance.Source, base time.Duration, variation float64) time.Duration {
	if variation <= 0 {
		return base
	}
	lo := time.Duration(float64(base) * (1 - variation))
	hi := time.Duration(float64(base) * (1 + variation))
	return chance.Between(src, lo, hi)
}
