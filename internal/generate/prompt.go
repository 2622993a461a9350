package generate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nous-labs/murmur/internal/vibe"
)

// Style holds the account-wide prompt settings.
type Style struct {
	MinWords    int
	MaxWords    int
	BannedWords []string
	Personas    bool
}

// BaseSystem is the fixed opening of every system prompt.
func (s Style) BaseSystem() string {
	return fmt.Sprintf("You are a casual participant in a group chat. Lowercase only. %d-%d words max. No punctuation.",
		s.MinWords, s.MaxWords)
}

// ReplyInput is what a reply prompt is built from.
type ReplyInput struct {
	Username    string
	Message     string
	Preferences map[string]string
	Recent      []string // channel history lines
	UserMemory  []string // the author's own recent texts
	Memory      string   // formatted store history
	Persona     vibe.Persona
	Vibe        vibe.Context
}

// Reply builds the system and user prompts for answering a message.
func (s Style) Reply(in ReplyInput) (system, prompt string) {
	var b strings.Builder
	b.WriteString(s.BaseSystem())
	b.WriteString("\n\nUser preferences: ")
	b.WriteString(formatPreferences(in.Preferences))
	b.WriteString("\n\nRecent:\n")
	b.WriteString(strings.Join(in.Recent, "\n"))
	if len(in.UserMemory) > 0 {
		fmt.Fprintf(&b, "\n\nEarlier from %s:\n%s", in.Username, strings.Join(in.UserMemory, "\n"))
	}
	b.WriteString("\n\nMemory:\n")
	b.WriteString(in.Memory)

	system = s.decorate(b.String(), in.Persona, in.Vibe)
	prompt = fmt.Sprintf("Reply to %s: %q with %s mood and %s sentiment",
		in.Username, in.Message, in.Vibe.Mood, in.Vibe.Sentiment)
	return system, prompt
}

// Opener builds the prompts for starting a conversation in a quiet channel.
func (s Style) Opener(memory string, persona vibe.Persona, v vibe.Context) (system, prompt string) {
	system = s.decorate(s.BaseSystem()+"\n\nGenerate a casual message to start conversation.", persona, v)
	prompt = fmt.Sprintf("the chat has been quiet, start a conversation about %s with %s sentiment, mood is %s. recent context: %s",
		v.Topic, v.Sentiment, v.Mood, memory)
	return system, prompt
}

func (s Style) decorate(system string, persona vibe.Persona, v vibe.Context) string {
	if s.Personas {
		system = persona.Apply(system)
	}
	var b strings.Builder
	b.WriteString(system)
	fmt.Fprintf(&b, "\n\nCurrent topic: %s. Stay on topic.", v.Topic)
	fmt.Fprintf(&b, "\nSentiment: %s. Mood: %s. Match this vibe.", v.Sentiment, v.Mood)
	if len(s.BannedWords) > 0 {
		fmt.Fprintf(&b, "\nAvoid these words: %s.", strings.Join(s.BannedWords, ", "))
	}
	fmt.Fprintf(&b, "\n\nResponse style: %s. Keep it casual.", v.Shape.Instruction)
	return b.String()
}

func formatPreferences(prefs map[string]string) string {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+prefs[k])
	}
	return strings.Join(parts, ", ")
}
