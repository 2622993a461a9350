package vibe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nous-labs/murmur/internal/chance"
)

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		text string
		want Topic
	}{
		{"I love playing this game", TopicGaming},
		{"I hate this stupid movie", TopicMovies},
		{"new album dropped", TopicMusic},
		{"pushed an app update", TopicTech},
		{"what should i cook tonight", TopicFood},
		{"rewatching naruto", TopicAnime},
		{"just watched one piece", TopicAnime},
		{"nothing much honestly", TopicGeneral},
		// substring match, first category wins
		{"the movie had a game scene", TopicGaming},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTopic(tt.text))
		})
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	tests := []struct {
		text string
		want Sentiment
	}{
		{"I love playing this game", Positive},
		{"I hate this stupid movie", Negative},
		{"the bus leaves at noon", Neutral},
		{"sorry", Neutral},
		{"this is not good", Negative},
		{"that was awesome lol", Positive},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, AnalyzeSentiment(tt.text))
		})
	}
}

func TestPickMoodStaysInSentimentSet(t *testing.T) {
	for s, moods := range moodsBySentiment {
		for i := range moods {
			src := chance.NewScripted().WithInts(i)
			assert.Equal(t, moods[i], PickMood(src, s))
		}
	}
	assert.Equal(t, Chill, PickMood(chance.NewScripted(), Sentiment("unknown")))
}

func TestMoodProfiles(t *testing.T) {
	assert.InDelta(t, 1.2, Excited.Profile().Multiplier, 1e-9)
	assert.InDelta(t, 0.8, Lazy.Profile().Multiplier, 1e-9)
	assert.Contains(t, Paranoid.Profile().Emojis, "🙈")
	assert.Equal(t, Chill.Profile(), Mood("grumpy").Profile())
}

func TestPickShapeBoundaries(t *testing.T) {
	tests := []struct {
		r    float64
		want ShapeKind
		max  int
	}{
		{0.0, SingleWord, 10},
		{0.1999, SingleWord, 10},
		{0.2, Long, 100},
		{0.466, Long, 100},
		{0.467, Short, 30},
		{0.99, Short, 30},
	}
	for _, tt := range tests {
		got := PickShape(chance.NewScripted(tt.r))
		assert.Equal(t, tt.want, got.Kind, "r=%v", tt.r)
		assert.Equal(t, tt.max, got.MaxTokens, "r=%v", tt.r)
	}
}

func TestDeriveIsDeterministicForTopicAndSentiment(t *testing.T) {
	a := Derive(chance.NewSeeded(1), "I hate this stupid movie")
	b := Derive(chance.NewSeeded(99), "I hate this stupid movie")
	assert.Equal(t, TopicMovies, a.Topic)
	assert.Equal(t, a.Topic, b.Topic)
	assert.Equal(t, Negative, a.Sentiment)
	assert.Equal(t, a.Sentiment, b.Sentiment)
	assert.Contains(t, moodsBySentiment[Negative], a.Mood)
}

func TestDominant(t *testing.T) {
	topic, sentiment := Dominant([]string{
		"new song is great",
		"that album is awesome",
		"my pc died, this is terrible",
	})
	assert.Equal(t, TopicMusic, topic)
	assert.Equal(t, Positive, sentiment)

	topic, sentiment = Dominant(nil)
	assert.Equal(t, TopicGeneral, topic)
	assert.Equal(t, Neutral, sentiment)
}

func TestPersona(t *testing.T) {
	require.Equal(t, PersonaCrypto, PersonaFor("Crypto-Talk"))
	require.Equal(t, PersonaGamer, PersonaFor("gameplay"))
	require.Equal(t, PersonaTech, PersonaFor("code-review"))
	require.Equal(t, PersonaNormal, PersonaFor("general"))

	assert.Equal(t, "hello", PersonaNormal.Apply("hello"))
	assert.Equal(t, "You love music.\n\nhello", PersonaMusic.Apply("hello"))
}
