package vibe

import (
	"sort"

	"github.com/nous-labs/murmur/internal/chance"
)

// Context is the derived state for one incoming message.
type Context struct {
	Topic     Topic
	Sentiment Sentiment
	Mood      Mood
	Shape     Shape
}

// Derive computes topic and sentiment deterministically from text, then
// draws mood and shape from src.
func Derive(src chance.Source, text string) Context {
	s := AnalyzeSentiment(text)
	return Context{
		Topic:     DetectTopic(text),
		Sentiment: s,
		Mood:      PickMood(src, s),
		Shape:     PickShape(src),
	}
}

// Dominant returns the most frequent topic and sentiment across texts.
// Ties go to the value seen first. Empty input yields general and neutral.
func Dominant(texts []string) (Topic, Sentiment) {
	if len(texts) == 0 {
		return TopicGeneral, Neutral
	}
	topics := make([]Topic, len(texts))
	sentiments := make([]Sentiment, len(texts))
	for i, t := range texts {
		topics[i] = DetectTopic(t)
		sentiments[i] = AnalyzeSentiment(t)
	}
	return mostFrequent(topics), mostFrequent(sentiments)
}

func mostFrequent[T comparable](values []T) T {
	counts := make(map[T]int, len(values))
	order := make([]T, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return order[0]
}
