package engine

import (
	"time"

	"github.com/kagemori/fontpatch/engine/event"
)

// startSweep runs the sentinel sweeper: a time-boxed safety net that
// periodically re-queries the top-level document for frame containers and
// re-attempts entry. It exists purely for load-order races the
// event-driven paths miss; entry is idempotent, so already-entered
// containers cost nothing.
func (e *Engine) startSweep() {
	e.stopSweep()
	if !e.gate() || e.doc == nil {
		return
	}

	e.sweepUntil = time.Now().Add(e.params.SweepDuration)
	e.sweepStop = e.loop.Every(e.params.SweepInterval, e.sweepTick)
}

func (e *Engine) sweepTick() {
	if !e.gate() || time.Now().After(e.sweepUntil) {
		e.stopSweep()
		ev := event.New(event.TypeSweepDone)
		if e.doc != nil {
			ev.Host = e.doc.Hostname()
		}
		e.emit(ev)
		return
	}
	for _, f := range e.doc.Frames() {
		e.enter(f)
	}
}

func (e *Engine) stopSweep() {
	if e.sweepStop != nil {
		e.sweepStop()
		e.sweepStop = nil
	}
}
