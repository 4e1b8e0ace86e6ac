package engine

import "testing"

func TestHasCJK(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"plain ascii", false},
		{"漢字", true},
		{"ひらがな", true},
		{"カタカナ", true},
		{"mixed 中文 text", true},
		{"한국어", false},          // Hangul is outside the predicate
		{"é è ü ß", false},      // accented latin
		{"１２３", false},          // fullwidth digits
		{"punctuation 。、", false}, // CJK punctuation alone does not qualify
	}
	for _, tt := range tests {
		if got := hasCJK(tt.in); got != tt.want {
			t.Errorf("hasCJK(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
