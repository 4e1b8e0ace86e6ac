package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := Default()
	if !cfg.Enabled {
		t.Error("default config disabled")
	}
	if cfg.Font.CJK == "" || cfg.Font.Code == "" {
		t.Errorf("fonts unset: cjk=%q code=%q", cfg.Font.CJK, cfg.Font.Code)
	}
	if len(cfg.UnicodeRanges) == 0 {
		t.Error("unicode ranges unset")
	}
}

func TestBlacklisted(t *testing.T) {
	cfg := Config{Blacklist: []string{"example.com", "Tracker.NET ", ""}}

	tests := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"www.example.com", true},         // label-boundary suffix
		{"deep.sub.example.com", true},    // multi-label subdomain
		{"notexample.com", false},         // no boundary
		{"example.com.evil.org", false},   // prefix, not suffix
		{"EXAMPLE.COM", true},             // case-insensitive
		{"tracker.net", true},             // entry normalised
		{"example.org", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := cfg.Blacklisted(tt.host); got != tt.want {
			t.Errorf("Blacklisted(%q): got %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	cfg := Config{Blacklist: []string{"a.com"}}
	cfg.applyDefaults()

	cp := cfg.clone()
	cp.Blacklist[0] = "b.com"
	cp.UnicodeRanges[0] = "U+0000"

	if cfg.Blacklist[0] != "a.com" {
		t.Error("clone aliases Blacklist")
	}
	if cfg.UnicodeRanges[0] == "U+0000" {
		t.Error("clone aliases UnicodeRanges")
	}
}
