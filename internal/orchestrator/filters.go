package orchestrator

import (
	"regexp"
	"strings"

	"github.com/nous-labs/murmur/pkg/channel"
)

var preferenceRe = regexp.MustCompile(`(?i)my favorite (game|food|anime) is (\w+)`)

// ExtractPreferences pulls "my favorite <game|food|anime> is X" statements
// out of text as favorite_<kind> keys.
func ExtractPreferences(text string) map[string]string {
	prefs := make(map[string]string)
	for _, m := range preferenceRe.FindAllStringSubmatch(text, -1) {
		key := "favorite_" + strings.ToLower(m[1])
		if _, seen := prefs[key]; !seen {
			prefs[key] = m[2]
		}
	}
	return prefs
}

var lowValueRe = regexp.MustCompile(`(?i)^(ok|yes|no|maybe|idk|lol|lmao|haha|hey|hi|hello|sup|yo|kk|k)$`)

// IsLowValue reports short generic acknowledgements not worth answering.
func IsLowValue(content string) bool {
	c := strings.TrimSpace(content)
	return len(c) < 10 && lowValueRe.MatchString(c)
}

// IsDirected reports whether msg mentions self, names it, or is a DM.
func IsDirected(msg channel.Message, self channel.Self) bool {
	if self.ID != "" && msg.Mentioned(self.ID) {
		return true
	}
	if self.Username != "" && strings.Contains(strings.ToLower(msg.Content), strings.ToLower(self.Username)) {
		return true
	}
	return msg.IsDirect
}

var automationQuestionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(are|r)\s+(you|u|ya)\s+(a|an)?\s*(bot|ai|robot|human|real|automated|chatgpt|gpt|llm|machine)\b`),
	regexp.MustCompile(`(?i)\b(is|iz)\s+(this|that|it)\s+(a|an)?\s*(bot|ai|robot|automated|chatgpt|gpt|llm)\b`),
	regexp.MustCompile(`(?i)\b(am i|are we)\s+(talking|speaking|chatting)\s+(to|with)\s+(a|an)?\s*(bot|ai|robot|human|real person|machine)\b`),
	regexp.MustCompile(`(?i)\b(you|u)\s+(a|an)\s+(bot|ai|robot)\s*\?`),
}

// AsksIfAutomated reports whether text sincerely asks if the account is
// automated.
func AsksIfAutomated(text string) bool {
	for _, re := range automationQuestionRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
