// Package humanize post-processes generated replies so they read like
// casual chat: noise stripped, occasional disfluencies, self-corrections,
// typos and emoji. Every stage draws from an injected chance.Source.
package humanize

import (
	"regexp"
	"strings"
)

// Mask replaces banned words.
const Mask = "***"

// DefaultBannedWords are masked by Sanitize.
var DefaultBannedWords = []string{"hi", "fire", "hello", "lit", "blaze"}

var (
	noiseRe = regexp.MustCompile("[*_~`#'\";:-]+")
	urlRe   = regexp.MustCompile(`https?://\S+`)
)

// Sanitizer strips markdown noise, replaces links and masks banned words.
type Sanitizer struct {
	banned []*regexp.Regexp
}

// NewSanitizer compiles whole-word, case-insensitive matchers for words.
func NewSanitizer(words []string) *Sanitizer {
	s := &Sanitizer{}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		s.banned = append(s.banned, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return s
}

// Sanitize returns the cleaned text, or text itself when cleaning changes
// nothing beyond case.
func (s *Sanitizer) Sanitize(text string) string {
	out := urlRe.ReplaceAllString(text, "[link]")
	out = noiseRe.ReplaceAllString(out, "")
	out = strings.ToLower(out)
	for _, re := range s.banned {
		out = re.ReplaceAllString(out, Mask)
	}
	if out == strings.ToLower(text) {
		return text
	}
	return out
}
