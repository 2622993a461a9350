package vibe

import (
	"strings"
	"unicode"
)

// Sentiment is the polarity tier of a message.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
)

// Score sums lexicon weights over the tokens of text. A weight directly
// preceded by a negator is flipped.
func Score(text string) int {
	tokens := tokenize(text)
	score := 0
	for i, tok := range tokens {
		w, ok := lexicon[tok]
		if !ok {
			continue
		}
		if i > 0 && negators[tokens[i-1]] {
			w = -w
		}
		score += w
	}
	return score
}

// AnalyzeSentiment maps the lexicon score to a tier: above 1 is positive,
// below -1 negative, anything else neutral.
func AnalyzeSentiment(text string) Sentiment {
	s := Score(text)
	switch {
	case s > 1:
		return Positive
	case s < -1:
		return Negative
	default:
		return Neutral
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "don't": true,
	"doesnt": true, "doesn't": true, "isnt": true, "isn't": true, "cant": true,
	"can't": true, "wont": true, "won't": true, "aint": true, "ain't": true,
	"wasnt": true, "wasn't": true, "didnt": true, "didn't": true,
}

// lexicon is an AFINN-style word list scored from -5 to +5, trimmed to
// vocabulary that shows up in casual chat.
var lexicon = map[string]int{
	// positive
	"amazing": 4, "awesome": 4, "beautiful": 3, "best": 3, "better": 2,
	"brilliant": 4, "calm": 2, "celebrate": 3, "cheer": 2, "cool": 1,
	"cute": 2, "delight": 3, "delighted": 3, "enjoy": 2, "enjoyed": 2,
	"excellent": 3, "excited": 3, "exciting": 3, "fantastic": 4, "fav": 2,
	"favorite": 2, "fine": 2, "fun": 4, "funny": 4, "glad": 3,
	"good": 3, "gorgeous": 3, "great": 3, "happy": 3, "haha": 3,
	"hope": 2, "hopeful": 2, "hug": 2, "impressive": 3, "incredible": 4,
	"interesting": 2, "joy": 3, "kind": 2, "lmao": 3, "lol": 3,
	"love": 3, "loved": 3, "lovely": 3, "loving": 2, "lucky": 3,
	"nice": 3, "outstanding": 5, "perfect": 3, "pleased": 3, "pretty": 1,
	"proud": 2, "rofl": 4, "sweet": 2, "thank": 2, "thanks": 2,
	"thrilled": 5, "top": 2, "win": 4, "winner": 4, "winning": 4,
	"wonderful": 4, "wow": 4, "yay": 2, "yeah": 1, "yes": 1,
	"yummy": 3, "superb": 5, "hilarious": 2, "hype": 2, "legendary": 3,
	"like": 2, "liked": 2, "likes": 2, "agree": 1, "epic": 3,
	"comfy": 2, "chill": 1, "smile": 2, "smart": 1, "strong": 2,
	"support": 2, "safe": 1, "useful": 2, "welcome": 2, "wins": 4,
	// negative
	"angry": -3, "annoyed": -2, "annoying": -2, "anxious": -2, "awful": -3,
	"bad": -3, "bored": -2, "boring": -3, "broke": -1, "broken": -1,
	"cringe": -2, "cry": -1, "crying": -2, "damn": -2, "dead": -3,
	"depressed": -2, "disappointed": -2, "disappointing": -2, "dumb": -3, "fail": -2,
	"failed": -2, "fear": -2, "fuck": -4, "hate": -3, "hated": -3,
	"hates": -3, "horrible": -3, "hurt": -2, "idiot": -3, "kill": -3,
	"lame": -2, "lonely": -2, "lose": -3, "loser": -3, "losing": -3,
	"lost": -3, "mad": -3, "mess": -2, "miss": -2, "nasty": -3,
	"pain": -2, "pathetic": -2, "poor": -2, "rage": -2, "ruined": -2,
	"sad": -2, "scared": -2, "shit": -4, "sick": -2, "sorry": -1,
	"stupid": -2, "sucks": -3, "terrible": -3, "tired": -2, "trash": -2,
	"ugly": -3, "unfair": -2, "unfortunately": -2, "upset": -2, "useless": -2,
	"waste": -1, "weak": -2, "worried": -3, "worse": -3, "worst": -3,
	"wrong": -2, "wtf": -4, "ugh": -2, "meh": -1, "lag": -1,
	"laggy": -2, "toxic": -3, "scam": -2, "bug": -1, "buggy": -2,
	"cheat": -3, "cheater": -3, "crap": -3, "disgusting": -3, "nervous": -2,
}
