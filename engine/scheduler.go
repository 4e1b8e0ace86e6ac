package engine

import (
	"time"

	"github.com/kagemori/fontpatch/dom"
	"github.com/kagemori/fontpatch/engine/event"
)

// idleTimeout is the starvation ceiling handed to the host idle
// primitive: a slice runs no later than this after being requested.
const idleTimeout = 500 * time.Millisecond

// scheduleBatch arranges for one slice of the scope's queue to run off
// the rendering path. At most one batch is outstanding per scope; when a
// slice leaves work behind it reschedules itself.
func (e *Engine) scheduleBatch(sc *scope) {
	if sc.cancelRun != nil || len(sc.queue) == 0 {
		return
	}

	run := func() {
		e.loop.Post(func() { e.runBatch(sc) })
	}

	// Prefer the host's idle-time primitive; fall back to a short
	// deferred timer with the identical bounded-slice contract.
	if idle, ok := sc.doc.(dom.IdleHost); ok {
		sc.cancelRun = idle.RequestIdle(run, idleTimeout)
		return
	}
	sc.cancelRun = e.loop.After(e.params.IdleFallbackDelay, func() { e.runBatch(sc) })
}

// runBatch drains up to BatchCap queued nodes. A slice always runs to
// completion once started; per-element failures never abort it.
func (e *Engine) runBatch(sc *scope) {
	sc.cancelRun = nil

	if !e.gate() {
		// Gate went inactive: abandon the queue rather than leak it
		// scheduled-but-never-drained.
		sc.queue = nil
		return
	}

	n := e.params.BatchCap
	if n > len(sc.queue) {
		n = len(sc.queue)
	}
	slice := sc.queue[:n]
	sc.queue = sc.queue[n:]

	patched := 0
	for _, t := range slice {
		if el := e.resolvePatchable(t); el != nil {
			if e.applyPatch(el) {
				patched++
			}
		}
	}
	e.patched += patched

	if patched > 0 {
		ev := event.New(event.TypePatchBatch)
		ev.Scope = sc.doc.Key()
		ev.Count = patched
		e.emit(ev)
	}

	if len(sc.queue) > 0 {
		e.scheduleBatch(sc)
	}
}
