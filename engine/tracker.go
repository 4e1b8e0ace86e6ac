package engine

import (
	"github.com/kagemori/fontpatch/dom"
)

// armTracker installs the scope's insertion observer, disconnecting any
// prior one first (idempotent re-arm). Observer callbacks only hop onto
// the loop; the expensive work happens in scan and the batch scheduler.
func (e *Engine) armTracker(sc *scope) {
	if sc.disconnect != nil {
		sc.disconnect()
		sc.disconnect = nil
	}

	disconnect, err := sc.doc.Observe(func(inserted []dom.Node) {
		e.loop.Post(func() { e.onInserted(sc, inserted) })
	})
	if err != nil {
		e.logger.Warn("engine: observer install failed", "scope", sc.doc.Key(), "error", err)
		return
	}
	sc.disconnect = disconnect
}

// onInserted handles one host notification batch: inserted frame
// containers (directly or nested in the inserted subtree) are routed to
// the boundary crawler, and every inserted node feeds the scanner.
func (e *Engine) onInserted(sc *scope, inserted []dom.Node) {
	if !e.gate() {
		return
	}

	for _, n := range inserted {
		if el, ok := n.(dom.Element); ok {
			if el.IsFrame() {
				e.enter(el)
			} else {
				el.Walk(func(d dom.Node) bool {
					if sub, ok := d.(dom.Element); ok && sub.IsFrame() {
						e.enter(sub)
					}
					return true
				})
			}
		}
		e.scan(sc, n)
	}
}
