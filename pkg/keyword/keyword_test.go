package keyword

import "testing"

func TestMatcher(t *testing.T) {
	tests := []struct {
		word     string
		text     string
		expected bool
	}{
		{"helovox", "Oi Helovox, tudo bem?", true},
		{"helovox", "HELOVOX", true},
		{"helovox", "fale com a helovox agora", true},
		{"helovox", "oi pessoal", false},
		{"descrever", "Descrever, por favor", true},
		{"descrever", "pode descrever?", true},
		{"descrever", "descreva", false},
		{"", "qualquer coisa", false},
	}

	for _, test := range tests {
		m := NewMatcher(test.word)
		if got := m.Matches(test.text); got != test.expected {
			t.Errorf("NewMatcher(%q).Matches(%q) = %v, expected %v", test.word, test.text, got, test.expected)
		}
	}
}
