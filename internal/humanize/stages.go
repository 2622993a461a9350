package humanize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/vibe"
)

type disfluencyKind int

const (
	hesitation disfluencyKind = iota
	backtrack
	filler
)

var disfluencies = [...][]string{
	hesitation: {"well", "um", "uh", "like"},
	backtrack:  {"wait", "i mean", "actually", "hold on"},
	filler:     {"you know", "sort of", "kind of", "basically"},
}

// AddDisfluency fires with probability p. Texts under three words are left
// alone. A hesitation is prefixed half the time; a backtrack marker is
// spliced between words when the text has more than four. Fillers leave the
// text unchanged.
func AddDisfluency(src chance.Source, text string, p float64) string {
	if !chance.Roll(src, p) {
		return text
	}
	words := strings.Split(text, " ")
	if len(words) < 3 {
		return text
	}
	kind := disfluencyKind(src.IntN(len(disfluencies)))
	phrase := chance.Pick(src, disfluencies[kind])

	switch {
	case kind == hesitation && src.Float64() > 0.5:
		return phrase + " " + text
	case kind == backtrack && len(words) > 4:
		pos := src.IntN(len(words)-2) + 1
		out := make([]string, 0, len(words)+1)
		out = append(out, words[:pos]...)
		out = append(out, phrase+",")
		out = append(out, words[pos:]...)
		return strings.Join(out, " ")
	}
	return text
}

var corrections = []string{
	"wait no", "my bad", "actually", "hold on",
	"i meant", "scratch that", "never mind",
}

// AddSelfCorrection fires with probability p, and then only half the time,
// prefixing "<marker>, ".
func AddSelfCorrection(src chance.Source, text string, p float64) string {
	if !chance.Roll(src, p) {
		return text
	}
	if src.Float64() <= 0.5 {
		return text
	}
	return chance.Pick(src, corrections) + ", " + text
}

var misspellings = map[string]string{
	"the": "teh", "and": "adn", "you": "yu",
	"for": "fro", "with": "wit", "this": "thsi",
	"that": "taht", "have": "hav", "what": "wat",
}

var misspellRe = regexp.MustCompile(`(?i)\b(the|and|you|for|with|this|that|have|what)\b`)

const (
	typoVowel = iota
	typoSuffix
	typoCommonWord
	typoUpper
	typoKinds
)

// AddTypo fires with probability p and applies exactly one transformation.
func AddTypo(src chance.Source, text string, p float64) string {
	if text == "" || !chance.Roll(src, p) {
		return text
	}
	switch src.IntN(typoKinds) {
	case typoVowel:
		return vowelTypo(src, text)
	case typoSuffix:
		return suffixTypo(text)
	case typoCommonWord:
		return misspellRe.ReplaceAllStringFunc(text, func(m string) string {
			return misspellings[strings.ToLower(m)]
		})
	default:
		return upperTypo(src, text)
	}
}

// vowelTypo doubles up the last vowel of text with an extra e or o.
func vowelTypo(src chance.Source, text string) string {
	i := strings.LastIndexAny(text, "aeiouAEIOU")
	if i < 0 {
		return text
	}
	extra := "o"
	if src.Float64() > 0.5 {
		extra = "e"
	}
	return text[:i+1] + extra + text[i+1:]
}

func suffixTypo(text string) string {
	lower := strings.ToLower(text)
	for _, suf := range []string{"ing", "ed", "es", "s"} {
		if strings.HasSuffix(lower, suf) {
			return text[:len(text)-1]
		}
	}
	return text
}

func upperTypo(src chance.Source, text string) string {
	runes := []rune(text)
	i := src.IntN(len(runes))
	runes[i] = unicode.ToUpper(runes[i])
	return string(runes)
}

// AddEmoji fires with probability p and appends one emoji from mood's set.
func AddEmoji(src chance.Source, text string, mood vibe.Mood, p float64) string {
	if !chance.Roll(src, p) {
		return text
	}
	return text + chance.Pick(src, mood.Profile().Emojis)
}

// WordCount counts space-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
