package engine

import (
	"errors"

	"github.com/kagemori/fontpatch/dom"
	"github.com/kagemori/fontpatch/engine/event"
)

// enter attempts to cross into a frame container's interior document.
// Idempotent per container: the membership table records containers
// already handled. Cross-origin denial is permanent; a still-loading
// interior retries once per load event via a one-shot listener.
//
// This is the race-prone path: the interior may not exist yet when the
// container first appears, and it may never become inspectable at all.
func (e *Engine) enter(container dom.Element) {
	if !e.gate() || !container.IsFrame() {
		return
	}

	key := container.Key()
	ent := e.frames[key]
	if ent == nil {
		ent = &frameEntry{}
		e.frames[key] = ent
	}
	if ent.done {
		return
	}

	fd, err := container.FrameDocument()
	switch {
	case err == nil && frameReady(fd):
		ent.done = true
		ent.listener = false
		e.activateScope(fd)
		for _, f := range fd.Frames() {
			e.enter(f)
		}
		ev := event.New(event.TypeFrameEntered)
		ev.Scope = fd.Key()
		ev.Detail = key
		e.emit(ev)

	case errors.Is(err, dom.ErrDenied):
		// Permanent: never retried, even if the interior later becomes
		// accessible.
		ent.done = true
		ent.denied = true
		ev := event.New(event.TypeFrameDenied)
		ev.Detail = key
		e.emit(ev)

	default:
		// Interior missing or not yet readable. Wait for completion,
		// unless a listener is already waiting.
		if ent.listener {
			return
		}
		_, lerr := container.OnLoad(func() {
			e.loop.Post(func() {
				if fe := e.frames[key]; fe != nil {
					fe.listener = false
				}
				e.enter(container)
			})
		})
		if lerr != nil {
			ent.done = true
			return
		}
		ent.listener = true
	}
}

// frameReady reports whether an interior document can be activated: it
// has finished (or nearly finished) loading and has a body.
func frameReady(d dom.Document) bool {
	if d == nil {
		return false
	}
	rs := d.ReadyState()
	return (rs == dom.ReadyInteractive || rs == dom.ReadyComplete) && d.Body() != nil
}
