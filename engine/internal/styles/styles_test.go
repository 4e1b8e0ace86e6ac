package styles

import (
	"strings"
	"testing"

	"github.com/kagemori/fontpatch/engine/internal/config"
)

func TestSheet(t *testing.T) {
	cfg := config.Default()
	css := Sheet(cfg)

	for _, want := range []string{
		`@font-face`,
		`font-family: "Noto Sans CJK SC";`,
		`src: local("Noto Sans CJK SC");`,
		`unicode-range: U+3040-309F`,
		`code, pre, kbd, samp, tt`,
		`"JetBrains Mono", "Noto Sans CJK SC", monospace`,
	} {
		if !strings.Contains(css, want) {
			t.Errorf("sheet missing %q:\n%s", want, css)
		}
	}
}

func TestSheetWithoutRanges(t *testing.T) {
	cfg := config.Default()
	cfg.UnicodeRanges = nil
	if css := Sheet(cfg); strings.Contains(css, "unicode-range") {
		t.Error("unicode-range emitted with no ranges configured")
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"sans-serif", "sans-serif"},
		{"Monospace", "Monospace"},
		{"Noto Sans CJK SC", `"Noto Sans CJK SC"`},
		{`"Already Quoted Name"`, `"Already Quoted Name"`},
		{"Arial", "Arial"},
		{"", `""`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplit(t *testing.T) {
	got := Split(`"Noto Sans CJK SC", 'My, Font', Arial , sans-serif`)
	want := []string{"Noto Sans CJK SC", "My, Font", "Arial", "sans-serif"}
	if len(got) != len(want) {
		t.Fatalf("Split: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Split[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContains(t *testing.T) {
	value := `"Noto Sans CJK SC", sans-serif`
	if !Contains(value, "noto sans cjk sc") {
		t.Error("case-insensitive match failed")
	}
	if Contains(value, "Noto Sans") {
		t.Error("partial name matched")
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		family, existing, want string
	}{
		{"My Font", "serif", `"My Font", serif`},
		{"My Font", `"My Font", serif`, `"My Font", serif`}, // dedup
		{"My Font", "", `"My Font"`},
		{"My Font", `Arial, "my font", monospace`, `"My Font", Arial, monospace`},
	}
	for _, tt := range tests {
		if got := Prefix(tt.family, tt.existing); got != tt.want {
			t.Errorf("Prefix(%q, %q): got %q, want %q", tt.family, tt.existing, got, tt.want)
		}
	}
}
