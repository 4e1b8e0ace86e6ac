package engine

import (
	"github.com/kagemori/fontpatch/dom"
	"github.com/kagemori/fontpatch/engine/internal/styles"
)

// excludedParents are containers that must never receive a font override:
// script/style, non-rendered containers, and plain-text form inputs.
var excludedParents = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"textarea": true,
	"input":    true,
}

// resolvePatchable walks up from a text node to its parent element and
// rejects ineligible containers.
func (e *Engine) resolvePatchable(t dom.Text) dom.Element {
	p := t.Parent()
	if p == nil || excludedParents[p.Tag()] {
		return nil
	}
	return p
}

// applyPatch patches one element, best-effort. It is a no-op when the
// element already carries a patch marker; every failure is swallowed and
// the element is simply left unpatched. Returns whether a marker was set.
func (e *Engine) applyPatch(el dom.Element) bool {
	if _, ok := el.Attr(attrStatus); ok {
		return false
	}

	cfg := e.store.Snapshot()
	font := cfg.Font.CJK

	orig, err := el.InlineFontFamily()
	if err != nil {
		return false
	}
	computed, err := el.ComputedFontFamily()
	if err != nil {
		return false
	}

	if styles.Contains(computed, font) {
		// An ancestor sheet already applies the patch font; an inline
		// override would be redundant.
		if el.SetAttr(attrOrig, orig) != nil {
			return false
		}
		if el.SetAttr(attrStatus, statusComputed) != nil {
			el.RemoveAttr(attrOrig)
			return false
		}
		return true
	}

	base := computed
	if base == "" {
		base = "sans-serif"
	}
	if err := el.SetInlineFontFamily(styles.Prefix(font, base)); err != nil {
		return false
	}
	if el.SetAttr(attrOrig, orig) != nil || el.SetAttr(attrStatus, statusInline) != nil {
		// Marker write failed after the style landed; undo so the
		// element stays consistent with "unpatched".
		el.SetInlineFontFamily(orig)
		el.RemoveAttr(attrOrig)
		return false
	}
	return true
}

// revertElement restores an element's pre-patch font and clears both
// markers. Elements without a status marker are untouched.
func (e *Engine) revertElement(el dom.Element) {
	status, ok := el.Attr(attrStatus)
	if !ok {
		return
	}
	if status == statusInline {
		orig, _ := el.Attr(attrOrig)
		if err := el.SetInlineFontFamily(orig); err != nil {
			e.logger.Debug("engine: revert failed", "element", el.Key(), "error", err)
		}
	}
	el.RemoveAttr(attrStatus)
	el.RemoveAttr(attrOrig)
}
