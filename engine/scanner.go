package engine

import (
	"unicode"

	"github.com/kagemori/fontpatch/dom"
)

// cjkRanges is the script predicate: Han, Hiragana, Katakana.
var cjkRanges = []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana}

// hasCJK reports whether s contains at least one rune in the predicate
// ranges.
func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, cjkRanges...) {
			return true
		}
	}
	return false
}

// scan traverses node and its descendants in document order, enqueues
// CJK-bearing text nodes on the scope, recurses into shadow fragments
// found on descendant elements, and requests a batch. Document order is
// not required for correctness but patches front-to-back, which reads
// better while a large page is being processed.
func (e *Engine) scan(sc *scope, node dom.Node) {
	if !e.gate() {
		return
	}

	switch n := node.(type) {
	case dom.Text:
		e.enqueue(sc, n)
	case dom.Element:
		n.Walk(func(d dom.Node) bool {
			switch v := d.(type) {
			case dom.Text:
				e.enqueue(sc, v)
			case dom.Element:
				if sr := v.ShadowRoot(); sr != nil {
					e.activateScope(sr)
				}
			}
			return true
		})
	}

	e.scheduleBatch(sc)
}

// enqueue adds a candidate text node to the scope's queue. Text whose
// parent already carries a patch marker is settled; re-queueing it would
// only burn batch budget on apply-time no-ops.
func (e *Engine) enqueue(sc *scope, t dom.Text) {
	if !hasCJK(t.Data()) {
		return
	}
	if p := t.Parent(); p != nil {
		if _, ok := p.Attr(attrStatus); ok {
			return
		}
	}
	sc.queue = append(sc.queue, t)
}
