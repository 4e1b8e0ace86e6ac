package memdom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"github.com/kagemori/fontpatch/dom"
)

// stylesheet is an injected sheet reduced to the rules the cascade needs:
// selector matchers carrying a font-family value.
type stylesheet struct {
	id    string
	css   string
	rules []fontRule
}

type fontRule struct {
	sel    cascadia.Selector
	family string
}

// InjectStylesheet parses css and installs it under id. A sheet injected
// with an id already present replaces the previous one in place.
func (d *Document) InjectStylesheet(id, css string) error {
	rules, err := extractFontRules(css)
	if err != nil {
		return fmt.Errorf("memdom: stylesheet %s: %w", id, err)
	}
	sheet := &stylesheet{id: id, css: css, rules: rules}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.sheets {
		if s.id == id {
			d.sheets[i] = sheet
			return nil
		}
	}
	d.sheets = append(d.sheets, sheet)
	return nil
}

func (d *Document) RemoveStylesheet(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.sheets {
		if s.id == id {
			d.sheets = append(d.sheets[:i], d.sheets[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasStylesheet reports whether a sheet with id is installed (test API).
func (d *Document) HasStylesheet(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sheets {
		if s.id == id {
			return true
		}
	}
	return false
}

func extractFontRules(css string) ([]fontRule, error) {
	sheet, err := parser.Parse(css)
	if err != nil {
		return nil, err
	}
	var rules []fontRule
	for _, rule := range sheet.Rules {
		// At-rules (@font-face, @media) do not participate in this
		// cascade; @font-face only registers faces.
		if rule.Name != "" {
			continue
		}
		family := ""
		for _, decl := range rule.Declarations {
			if strings.EqualFold(decl.Property, "font-family") {
				family = decl.Value
			}
		}
		if family == "" {
			continue
		}
		for _, s := range rule.Selectors {
			sel, err := cascadia.Compile(s)
			if err != nil {
				continue // unsupported selector, skip rather than fail the sheet
			}
			rules = append(rules, fontRule{sel: sel, family: family})
		}
	}
	return rules, nil
}

// terminateDecls appends the trailing semicolon douceur needs: without
// one, ParseDeclarations returns the final declaration with an empty
// value.
func terminateDecls(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.HasSuffix(raw, ";") {
		raw += ";"
	}
	return raw
}

// InlineFontFamily reads the font-family property of the style attribute.
func (e *Element) InlineFontFamily() (string, error) {
	raw, ok := e.Attr("style")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", nil
	}
	decls, err := parser.ParseDeclarations(terminateDecls(raw))
	if err != nil {
		return "", nil // malformed inline style behaves as unset
	}
	family := ""
	for _, d := range decls {
		if strings.EqualFold(d.Property, "font-family") {
			family = d.Value
		}
	}
	return family, nil
}

// SetInlineFontFamily rewrites the style attribute, preserving unrelated
// declarations. An empty value removes the property.
func (e *Element) SetInlineFontFamily(value string) error {
	if !e.doc.rooted(e.n) {
		return dom.ErrDetached
	}
	var kept []string
	if raw, ok := e.Attr("style"); ok && strings.TrimSpace(raw) != "" {
		if decls, err := parser.ParseDeclarations(terminateDecls(raw)); err == nil {
			for _, d := range decls {
				if strings.EqualFold(d.Property, "font-family") {
					continue
				}
				kept = append(kept, d.Property+": "+d.Value)
			}
		}
	}
	if value != "" {
		kept = append(kept, "font-family: "+value)
	}
	if len(kept) == 0 {
		return e.RemoveAttr("style")
	}
	return e.SetAttr("style", strings.Join(kept, "; "))
}

// ComputedFontFamily resolves the cascade: inline style first, then
// injected sheets in order with the last matching rule winning, then
// inheritance through the parent chain (crossing a fragment boundary to
// the host element).
//
// Specificity is deliberately ignored; the engine only needs to see
// whether the winning value names the patch font.
func (e *Element) ComputedFontFamily() (string, error) {
	if !e.doc.rooted(e.n) {
		return "", dom.ErrDetached
	}
	return e.computedFontFamily(), nil
}

func (e *Element) computedFontFamily() string {
	if inline, _ := e.InlineFontFamily(); inline != "" {
		return inline
	}
	if fam := e.doc.ruleFontFamily(e.n); fam != "" {
		return fam
	}
	if p, ok := e.Parent().(*Element); ok && p != nil {
		return p.computedFontFamily()
	}
	if e.n == e.doc.root && e.doc.host != nil {
		// Fragment root inherits through the shadow host.
		return e.doc.host.computedFontFamily()
	}
	return ""
}

func (d *Document) ruleFontFamily(n *html.Node) string {
	// Match walks the tree (ancestors, siblings), so the lock covers it.
	d.mu.Lock()
	defer d.mu.Unlock()

	family := ""
	for _, s := range d.sheets {
		for _, r := range s.rules {
			if r.sel.Match(n) {
				family = r.family
			}
		}
	}
	return family
}
