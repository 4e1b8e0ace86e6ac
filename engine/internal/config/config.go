// Package config holds the engine configuration and its persistence
// backends: a YAML file store and an SQLite store with change watching.
// The engine only ever reads immutable snapshots; all writes go through a
// store and the caller follows up with an explicit full rescan.
package config

import "strings"

// Config is the persisted engine configuration.
type Config struct {
	Enabled       bool       `yaml:"enabled" json:"enabled"`
	Blacklist     []string   `yaml:"blacklist" json:"blacklist"`
	Font          FontConfig `yaml:"font" json:"font"`
	UnicodeRanges []string   `yaml:"unicode_ranges" json:"unicode_ranges"`
}

// FontConfig names the fonts injected ahead of the page's own choices.
type FontConfig struct {
	CJK  string `yaml:"cjk" json:"cjk"`
	Code string `yaml:"code" json:"code"`
}

// Default returns the configuration used when nothing is persisted yet.
func Default() Config {
	c := Config{Enabled: true}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Font.CJK == "" {
		c.Font.CJK = "Noto Sans CJK SC"
	}
	if c.Font.Code == "" {
		c.Font.Code = "JetBrains Mono"
	}
	if len(c.UnicodeRanges) == 0 {
		c.UnicodeRanges = []string{
			"U+3040-309F", // Hiragana
			"U+30A0-30FF", // Katakana
			"U+3400-4DBF", // CJK extension A
			"U+4E00-9FFF", // CJK unified ideographs
			"U+F900-FAFF", // compatibility ideographs
		}
	}
}

// Blacklisted reports whether host matches a blacklist entry: exact match,
// or the entry is a parent domain on a label boundary.
func (c Config) Blacklisted(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, b := range c.Blacklist {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

// clone returns a deep copy so snapshots never alias store state.
func (c Config) clone() Config {
	out := c
	out.Blacklist = append([]string(nil), c.Blacklist...)
	out.UnicodeRanges = append([]string(nil), c.UnicodeRanges...)
	return out
}

// Store is a persistence backend for Config.
type Store interface {
	// Snapshot returns an immutable copy of the current configuration.
	Snapshot() Config
	// Update applies fn to the configuration and persists the result
	// atomically.
	Update(fn func(*Config)) error
	Close() error
}
