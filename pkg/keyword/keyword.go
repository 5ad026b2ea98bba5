package keyword

import "strings"

// Matcher reports whether a trigger word occurs anywhere in a text.
// Matching is case-insensitive containment, which is how the bot's name
// and the describe confirmation are recognized.
type Matcher struct {
	word string
}

func NewMatcher(word string) Matcher {
	return Matcher{word: strings.ToLower(strings.TrimSpace(word))}
}

func (m Matcher) Matches(text string) bool {
	if m.word == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), m.word)
}
