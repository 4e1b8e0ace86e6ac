// Package engine implements the font-patch engine: it discovers
// CJK-bearing text in a live document tree, schedules style patches in
// bounded slices off the rendering path, tracks further mutations, crosses
// frame and shadow boundaries, and reverts cleanly on demand.
//
// The engine consumes host primitives through the dom package and runs all
// of its work on one cooperative loop; public methods are safe to call
// from any goroutine.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/kagemori/fontpatch/dom"
	"github.com/kagemori/fontpatch/engine/event"
	"github.com/kagemori/fontpatch/engine/internal/config"
	"github.com/kagemori/fontpatch/engine/internal/sched"
	"github.com/kagemori/fontpatch/engine/internal/sink"
	"github.com/kagemori/fontpatch/engine/internal/styles"
)

const (
	// Marker attributes carried by patched elements.
	attrStatus = "data-fontpatch-status"
	attrOrig   = "data-fontpatch-orig"

	statusInline   = "inline"   // patch applied as an inline override
	statusComputed = "computed" // an ancestor sheet already supplies the font
)

// ConfigSource yields immutable configuration snapshots. The gate is
// re-derived from a fresh snapshot before every unit of work.
type ConfigSource interface {
	Snapshot() config.Config
}

// Params configures a new Engine.
type Params struct {
	Store  ConfigSource
	Logger *slog.Logger
	Sinks  []sink.Sink

	// BatchCap bounds one scheduler slice. Default: 300.
	BatchCap int
	// SweepInterval / SweepDuration bound the sentinel sweeper.
	// Defaults: 800ms / 12s.
	SweepInterval time.Duration
	SweepDuration time.Duration
	// IdleFallbackDelay is the deferred-timer delay used when the host
	// document has no idle-time primitive. Default: 10ms.
	IdleFallbackDelay time.Duration
}

func (p *Params) defaults() {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.BatchCap <= 0 {
		p.BatchCap = 300
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = 800 * time.Millisecond
	}
	if p.SweepDuration <= 0 {
		p.SweepDuration = 12 * time.Second
	}
	if p.IdleFallbackDelay <= 0 {
		p.IdleFallbackDelay = 10 * time.Millisecond
	}
}

// scope is the engine-side record for one document context. Records live
// in a side table keyed by the context's identity and are removed on
// teardown; they never keep the context alive.
type scope struct {
	doc        dom.Document
	queue      []dom.Text
	cancelRun  func() // pending scheduled batch, nil when none
	disconnect func() // mutation observer, nil when unarmed
	fragCancel func() // fragment-creation interception
}

// frameEntry is the crawler's membership record for one container.
type frameEntry struct {
	done     bool
	denied   bool
	listener bool
}

// Engine is the patch engine for one top-level document tree.
type Engine struct {
	store  ConfigSource
	logger *slog.Logger
	sink   sink.Sink
	loop   *sched.Loop
	params Params

	// Loop-owned state below; never touched off-loop.
	doc     dom.Document
	scopes  map[string]*scope
	frames  map[string]*frameEntry
	patched int

	sweepStop  func()
	sweepUntil time.Time
}

// New creates an Engine. Call Attach to bind it to a document.
func New(p Params) *Engine {
	p.defaults()
	e := &Engine{
		store:  p.Store,
		logger: p.Logger,
		sink:   sink.NewRouter(p.Logger, p.Sinks...),
		params: p,
		scopes: make(map[string]*scope),
		frames: make(map[string]*frameEntry),
	}
	e.loop = sched.NewLoop(sched.WithPanicHandler(func(err error) {
		e.logger.Error("engine: recovered", "error", err)
		ev := event.New(event.TypeError)
		ev.Detail = err.Error()
		e.emit(ev)
	}))
	return e
}

// Attach binds the engine to a top-level document and activates it:
// stylesheet injection, initial scan, mutation tracking, boundary entry,
// and the sentinel sweep.
func (e *Engine) Attach(doc dom.Document) {
	e.loop.Do(func() {
		e.doc = doc
		e.activateScope(doc)
		for _, f := range doc.Frames() {
			e.enter(f)
		}
		e.startSweep()
	})
}

// Stop deactivates everything and releases the loop. The engine cannot be
// reused afterwards.
func (e *Engine) Stop() {
	e.loop.Do(func() {
		if e.doc != nil {
			e.deactivateScope(e.doc)
		}
		e.stopSweep()
	})
	e.loop.Close()
	e.sink.Close()
}

// FullRescan deactivates the top-level document, reactivates it under the
// current configuration, and re-attempts entry into every present frame.
// Call after any configuration edit that must take effect immediately.
func (e *Engine) FullRescan() {
	e.loop.Do(func() {
		if e.doc == nil {
			return
		}
		e.deactivateScope(e.doc)
		e.stopSweep()

		ev := event.New(event.TypeRescan)
		ev.Host = e.doc.Hostname()
		e.emit(ev)

		if !e.gate() {
			return
		}
		e.activateScope(e.doc)
		for _, f := range e.doc.Frames() {
			e.enter(f)
		}
		e.startSweep()
	})
}

// Status is a point-in-time view of engine state.
type Status struct {
	Host          string `json:"host"`
	GateActive    bool   `json:"gate_active"`
	Scopes        int    `json:"scopes"`
	QueueDepth    int    `json:"queue_depth"`
	Patched       int    `json:"patched"`
	FramesEntered int    `json:"frames_entered"`
	FramesDenied  int    `json:"frames_denied"`
}

// Status reports the engine's current state.
func (e *Engine) Status() Status {
	var st Status
	e.loop.Do(func() {
		st.GateActive = e.gate()
		if e.doc != nil {
			st.Host = e.doc.Hostname()
		}
		st.Scopes = len(e.scopes)
		st.Patched = e.patched
		for _, sc := range e.scopes {
			st.QueueDepth += len(sc.queue)
		}
		for _, fe := range e.frames {
			if !fe.done {
				continue
			}
			if fe.denied {
				st.FramesDenied++
			} else {
				st.FramesEntered++
			}
		}
	})
	return st
}

// gate derives the activation gate from a fresh snapshot. Never cached.
func (e *Engine) gate() bool {
	cfg := e.store.Snapshot()
	if !cfg.Enabled {
		return false
	}
	if e.doc == nil {
		return true
	}
	return !cfg.Blacklisted(e.doc.Hostname())
}

// activateScope runs the activation sequence on one scope: keyed
// stylesheet injection, candidate scan, tracker arm, fragment
// interception. Safe to call repeatedly; patch status gates reentry.
func (e *Engine) activateScope(doc dom.Document) {
	if !e.gate() {
		return
	}
	cfg := e.store.Snapshot()

	sc := e.ensureScope(doc)

	if err := doc.InjectStylesheet(styles.SheetID, styles.Sheet(cfg)); err != nil {
		e.logger.Warn("engine: stylesheet injection failed", "scope", doc.Key(), "error", err)
	}

	if sc.fragCancel == nil {
		sc.fragCancel = doc.OnFragmentAttached(func(host dom.Element, root dom.Document) {
			// Runs before the creating code regains control; the Do
			// round-trip keeps the work on the loop while preserving
			// that ordering.
			e.loop.Do(func() {
				if e.gate() {
					e.activateScope(root)
				}
			})
		})
	}

	if root := doc.Root(); root != nil {
		e.scan(sc, root)
	}
	if doc.Body() != nil {
		e.armTracker(sc)
	}

	ev := event.New(event.TypeActivate)
	ev.Scope = doc.Key()
	ev.Host = doc.Hostname()
	e.emit(ev)
}

// deactivateScope reverts and releases a scope and everything reachable
// from it: observers, scheduled batches, the injected stylesheet, queued
// work, patch markers, frame interiors, and shadow fragments.
func (e *Engine) deactivateScope(doc dom.Document) {
	key := doc.Key()
	e.releaseScope(key)

	if err := doc.RemoveStylesheet(styles.SheetID); err != nil {
		e.logger.Debug("engine: stylesheet removal failed", "scope", key, "error", err)
	}

	if root := doc.Root(); root != nil {
		root.Walk(func(n dom.Node) bool {
			el, ok := n.(dom.Element)
			if !ok {
				return true
			}
			e.revertElement(el)
			if sr := el.ShadowRoot(); sr != nil {
				e.deactivateScope(sr)
			}
			if el.IsFrame() {
				delete(e.frames, el.Key())
				if fd, err := el.FrameDocument(); err == nil {
					e.deactivateScope(fd)
				}
			}
			return true
		})
	}

	// Membership reset: a later activation re-attempts every boundary.
	// The recursion above released every scope still reachable from the
	// tree; anything left in the table belongs to a context that was
	// removed since activation, so it goes too. Records never outlive
	// their context.
	if e.doc != nil && key == e.doc.Key() {
		e.frames = make(map[string]*frameEntry)
		for k := range e.scopes {
			e.releaseScope(k)
		}
	}

	ev := event.New(event.TypeDeactivate)
	ev.Scope = key
	e.emit(ev)
}

// releaseScope tears down the engine-side record for one scope key:
// observer, scheduled batch, fragment interception, queued work.
func (e *Engine) releaseScope(key string) {
	sc := e.scopes[key]
	if sc == nil {
		return
	}
	if sc.disconnect != nil {
		sc.disconnect()
	}
	if sc.cancelRun != nil {
		sc.cancelRun()
	}
	if sc.fragCancel != nil {
		sc.fragCancel()
	}
	sc.queue = nil
	delete(e.scopes, key)
}

func (e *Engine) ensureScope(doc dom.Document) *scope {
	key := doc.Key()
	sc := e.scopes[key]
	if sc == nil {
		sc = &scope{doc: doc}
		e.scopes[key] = sc
	}
	return sc
}

func (e *Engine) emit(ev event.Event) {
	if err := e.sink.Send(context.Background(), ev); err != nil {
		e.logger.Debug("engine: event emit failed", "type", ev.Type, "error", err)
	}
}
