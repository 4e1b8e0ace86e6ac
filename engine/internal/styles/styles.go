// Package styles builds the injected patch stylesheet and manipulates
// font-family value lists. It is plumbing around the engine: pure string
// construction, no document access.
package styles

import (
	"strings"

	"github.com/kagemori/fontpatch/engine/internal/config"
)

// SheetID keys the injected stylesheet so re-injection replaces rather
// than duplicates.
const SheetID = "fontpatch-style"

// Sheet renders the patch stylesheet for cfg: a @font-face clause binding
// the CJK font to the configured unicode ranges, and a monospace rule for
// code fragments. Fallback chains are injected, never verified — a named
// font may simply not be installed.
func Sheet(cfg config.Config) string {
	var b strings.Builder

	b.WriteString("@font-face {\n")
	b.WriteString("  font-family: " + Quote(cfg.Font.CJK) + ";\n")
	b.WriteString("  src: local(" + Quote(cfg.Font.CJK) + ");\n")
	if len(cfg.UnicodeRanges) > 0 {
		b.WriteString("  unicode-range: " + strings.Join(cfg.UnicodeRanges, ", ") + ";\n")
	}
	b.WriteString("}\n")

	b.WriteString("code, pre, kbd, samp, tt {\n")
	b.WriteString("  font-family: " + Quote(cfg.Font.Code) + ", " + Quote(cfg.Font.CJK) + ", monospace;\n")
	b.WriteString("}\n")

	return b.String()
}

// Quote wraps a font name in double quotes when it needs them (spaces or
// non-keyword characters). Generic family keywords stay bare.
func Quote(name string) string {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "serif", "sans-serif", "monospace", "cursive", "fantasy", "system-ui":
		return name
	}
	if name == "" || strings.ContainsAny(name, " .+/") {
		return `"` + strings.Trim(name, `"'`) + `"`
	}
	return name
}

// Split parses a font-family value into its family names, unquoted and
// trimmed, preserving order.
func Split(value string) []string {
	var out []string
	var cur strings.Builder
	var quote byte

	flush := func() {
		name := strings.TrimSpace(cur.String())
		name = strings.Trim(name, `"'`)
		if name != "" {
			out = append(out, name)
		}
		cur.Reset()
	}

	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

// Contains reports whether the font-family value names family
// (case-insensitive).
func Contains(value, family string) bool {
	for _, name := range Split(value) {
		if strings.EqualFold(name, family) {
			return true
		}
	}
	return false
}

// Prefix places family ahead of the existing font-family value, dropping
// any duplicate occurrence further down the list.
func Prefix(family, existing string) string {
	parts := []string{Quote(family)}
	for _, name := range Split(existing) {
		if strings.EqualFold(name, family) {
			continue
		}
		parts = append(parts, Quote(name))
	}
	return strings.Join(parts, ", ")
}
