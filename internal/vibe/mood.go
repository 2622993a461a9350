package vibe

import "github.com/nous-labs/murmur/internal/chance"

// Mood is the emotional register a reply should carry.
type Mood string

const (
	Excited   Mood = "excited"
	Chill     Mood = "chill"
	Sarcastic Mood = "sarcastic"
	Joking    Mood = "joking"
	Lazy      Mood = "lazy"
	Paranoid  Mood = "paranoid"
)

// MoodProfile holds the per-mood intensity multiplier and emoji set.
type MoodProfile struct {
	Multiplier float64
	Emojis     []string
}

var moodProfiles = map[Mood]MoodProfile{
	Excited:   {Multiplier: 1.2, Emojis: []string{"🤩", "🥳", "💥", "🎉"}},
	Chill:     {Multiplier: 1.0, Emojis: []string{"😌", "🍃", "🛋️", "✌️", "😎"}},
	Sarcastic: {Multiplier: 0.9, Emojis: []string{"🙄", "😏", "🤷", "😒", "👀"}},
	Joking:    {Multiplier: 1.1, Emojis: []string{"😂", "🤣", "😜", "😝", "🤡"}},
	Lazy:      {Multiplier: 0.8, Emojis: []string{"😴", "💤", "🛌", "😪", "🥱"}},
	Paranoid:  {Multiplier: 0.95, Emojis: []string{"🫣", "🤐", "👀", "😬", "🙈"}},
}

var moodsBySentiment = map[Sentiment][]Mood{
	Positive: {Excited, Chill, Joking},
	Negative: {Sarcastic, Paranoid, Lazy},
	Neutral:  {Chill, Joking, Lazy},
}

// PickMood draws a mood uniformly from the set mapped to s. Unknown
// sentiments fall back to chill. Each call draws afresh.
func PickMood(src chance.Source, s Sentiment) Mood {
	moods, ok := moodsBySentiment[s]
	if !ok {
		return Chill
	}
	return chance.Pick(src, moods)
}

// Profile returns the profile of m, falling back to chill.
func (m Mood) Profile() MoodProfile {
	if p, ok := moodProfiles[m]; ok {
		return p
	}
	return moodProfiles[Chill]
}
