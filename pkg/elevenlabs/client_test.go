package elevenlabs

import (
	"strings"
	"testing"
)

func TestSimplifyText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "plain text untouched",
			text:     "Tudo certo, pode deixar comigo!",
			expected: "Tudo certo, pode deixar comigo!",
		},
		{
			name:     "strips emoji and markdown leftovers",
			text:     "Oi! \U0001F600 *tudo* bem?",
			expected: "Oi!  tudo bem?",
		},
		{
			name:     "keeps sentence punctuation",
			text:     "Sim. Claro, sem problema?!",
			expected: "Sim. Claro, sem problema?!",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := SimplifyText(test.text); got != test.expected {
				t.Errorf("SimplifyText(%q) = %q, expected %q", test.text, got, test.expected)
			}
		})
	}
}

func TestSimplifyTextCapsLength(t *testing.T) {
	got := SimplifyText(strings.Repeat("a", maxSpeechChars+50))
	if len([]rune(got)) != maxSpeechChars {
		t.Errorf("expected %d runes, got %d", maxSpeechChars, len([]rune(got)))
	}
}
