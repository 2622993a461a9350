// Package vibe derives the lightweight conversational context that
// conditions a reply: what the message is about, how it feels, and the mood
// the reply should carry.
package vibe

import "strings"

// Topic is a coarse subject category.
type Topic string

const (
	TopicGaming  Topic = "gaming"
	TopicMusic   Topic = "music"
	TopicMovies  Topic = "movies"
	TopicTech    Topic = "tech"
	TopicFood    Topic = "food"
	TopicAnime   Topic = "anime"
	TopicGeneral Topic = "general"
)

type topicKeywords struct {
	topic    Topic
	keywords []string
}

// topicTable is evaluated in order; the first category with a keyword hit wins.
var topicTable = []topicKeywords{
	{TopicGaming, []string{"game", "play", "console", "pc", "xbox", "playstation", "controller", "gamer"}},
	{TopicMusic, []string{"song", "album", "artist", "band", "concert", "beats", "tune"}},
	{TopicMovies, []string{"film", "movie", "cinema", "actor", "director", "scene", "plot"}},
	{TopicTech, []string{"code", "tech", "software", "hardware", "gadget", "app", "update"}},
	{TopicFood, []string{"food", "eat", "cook", "recipe", "snack", "meal", "yummy"}},
	{TopicAnime, []string{"anime", "manga", "episode", "series", "character", "aot", "naruto", "one piece"}},
}

// DetectTopic returns the first category whose keywords occur anywhere in
// the lowercased text. Matching is by substring, so "display" counts as
// gaming.
func DetectTopic(text string) Topic {
	lower := strings.ToLower(text)
	for _, tk := range topicTable {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				return tk.topic
			}
		}
	}
	return TopicGeneral
}
