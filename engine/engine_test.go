package engine_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kagemori/fontpatch/dom"
	"github.com/kagemori/fontpatch/dom/memdom"
	"github.com/kagemori/fontpatch/engine"
	"github.com/kagemori/fontpatch/engine/event"
)

// memStore is an in-memory configuration store for tests.
type memStore struct {
	mu  sync.Mutex
	cfg engine.Config
}

func newMemStore(mutate func(*engine.Config)) *memStore {
	cfg := engine.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return &memStore{cfg: cfg}
}

func (s *memStore) Snapshot() engine.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *memStore) Update(fn func(*engine.Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	return nil
}

func (s *memStore) Close() error { return nil }

func newTestEngine(t *testing.T, store *memStore, sinks ...engine.Sink) *engine.Engine {
	t.Helper()
	eng := engine.New(engine.Params{
		Store:             store,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sinks:             sinks,
		IdleFallbackDelay: time.Millisecond,
		SweepInterval:     10 * time.Millisecond,
		SweepDuration:     300 * time.Millisecond,
	})
	t.Cleanup(eng.Stop)
	return eng
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func waitDrained(t *testing.T, eng *engine.Engine) {
	t.Helper()
	waitFor(t, func() bool { return eng.Status().QueueDepth == 0 })
}

func findTag(doc *memdom.Document, tag string) dom.Element {
	var found dom.Element
	doc.Root().Walk(func(n dom.Node) bool {
		if el, ok := n.(dom.Element); ok && el.Tag() == tag {
			found = el
			return false
		}
		return true
	})
	return found
}

func countMarked(root dom.Element) int {
	count := 0
	root.Walk(func(n dom.Node) bool {
		if el, ok := n.(dom.Element); ok {
			if _, ok := el.Attr("data-fontpatch-status"); ok {
				count++
			}
		}
		return true
	})
	return count
}

func TestPatchAppliesInlineOverride(t *testing.T) {
	doc := memdom.MustParse(`<html><head></head><body><p>漢字のテキスト</p><span>latin only</span></body></html>`)
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)
	waitDrained(t, eng)

	if !doc.HasStylesheet("fontpatch-style") {
		t.Error("patch stylesheet not injected")
	}

	p := findTag(doc, "p")
	status, ok := p.Attr("data-fontpatch-status")
	if !ok || status != "inline" {
		t.Fatalf("status: got %q (present=%v), want %q", status, ok, "inline")
	}
	style, _ := p.Attr("style")
	want := `font-family: "Noto Sans CJK SC", sans-serif`
	if style != want {
		t.Errorf("style: got %q, want %q", style, want)
	}

	span := findTag(doc, "span")
	if _, ok := span.Attr("data-fontpatch-status"); ok {
		t.Error("latin-only element was patched")
	}
}

func TestExcludedContainersNeverPatched(t *testing.T) {
	doc := memdom.MustParse(`<html><body>` +
		`<script>var s = "漢字";</script>` +
		`<textarea>中文</textarea>` +
		`</body></html>`)
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)
	waitDrained(t, eng)

	if got := countMarked(doc.Root()); got != 0 {
		t.Errorf("marked elements: got %d, want 0", got)
	}
}

func TestPatchIdempotentAcrossRescan(t *testing.T) {
	doc := memdom.MustParse(`<html><body><p>漢字</p></body></html>`)
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)
	waitDrained(t, eng)
	eng.FullRescan()
	waitDrained(t, eng)

	p := findTag(doc, "p")
	style, _ := p.Attr("style")
	if got := strings.Count(strings.ToLower(style), "noto sans cjk sc"); got != 1 {
		t.Errorf("patch font occurrences in %q: got %d, want 1", style, got)
	}
	if got := countMarked(doc.Root()); got != 1 {
		t.Errorf("marked elements: got %d, want 1", got)
	}
}

func TestComputedCoverageSkipsInlineOverride(t *testing.T) {
	doc := memdom.MustParse(`<html><body><p>漢字</p></body></html>`)
	if err := doc.InjectStylesheet("author", `p { font-family: "Noto Sans CJK SC"; }`); err != nil {
		t.Fatal(err)
	}
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)
	waitDrained(t, eng)

	p := findTag(doc, "p")
	status, _ := p.Attr("data-fontpatch-status")
	if status != "computed" {
		t.Fatalf("status: got %q, want %q", status, "computed")
	}
	if _, ok := p.Attr("style"); ok {
		t.Error("inline override written despite computed coverage")
	}
}

func TestDeactivateRestoresOriginalStyles(t *testing.T) {
	doc := memdom.MustParse(`<html><body><p style="color: red">漢字</p></body></html>`)
	store := newMemStore(nil)
	eng := newTestEngine(t, store)

	eng.Attach(doc)
	waitDrained(t, eng)
	if got := countMarked(doc.Root()); got != 1 {
		t.Fatalf("marked before toggle: got %d, want 1", got)
	}

	store.Update(func(c *engine.Config) { c.Enabled = false })
	eng.FullRescan()

	if got := countMarked(doc.Root()); got != 0 {
		t.Errorf("marked after toggle off: got %d, want 0", got)
	}
	p := findTag(doc, "p")
	style, _ := p.Attr("style")
	if style != "color: red" {
		t.Errorf("style after revert: got %q, want %q", style, "color: red")
	}
	if doc.HasStylesheet("fontpatch-style") {
		t.Error("patch stylesheet still present after toggle off")
	}
}

func TestBlacklistGateBlocksActivation(t *testing.T) {
	doc := memdom.MustParse(`<html><body><p>漢字</p></body></html>`,
		memdom.WithHostname("ads.example.com"))
	store := newMemStore(func(c *engine.Config) { c.Blacklist = []string{"example.com"} })
	eng := newTestEngine(t, store)

	eng.Attach(doc)

	st := eng.Status()
	if st.GateActive {
		t.Error("gate active on blacklisted host")
	}
	if doc.HasStylesheet("fontpatch-style") {
		t.Error("stylesheet injected on blacklisted host")
	}
	if got := countMarked(doc.Root()); got != 0 {
		t.Errorf("marked elements: got %d, want 0", got)
	}
}

func TestInsertedContentGetsPatched(t *testing.T) {
	doc := memdom.MustParse(`<html><body><div id="app"></div></body></html>`)
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)
	waitDrained(t, eng)

	if _, err := doc.AppendHTML(doc.Body(), `<div class="late">动态内容</div>`); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return countMarked(doc.Root()) == 1 })
}

func TestLateFrameLoad(t *testing.T) {
	doc := memdom.MustParse(`<html><body><iframe></iframe></body></html>`)
	inner := memdom.MustParse(`<html><body><p>框架内文本</p></body></html>`)
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)

	// The interior does not exist yet; the crawler must be waiting on the
	// container's load event, not giving up.
	if st := eng.Status(); st.FramesEntered != 0 {
		t.Fatalf("frames entered before load: got %d, want 0", st.FramesEntered)
	}

	doc.SetFrameDocument(findTag(doc, "iframe"), inner)
	waitFor(t, func() bool { return eng.Status().FramesEntered == 1 })
	waitFor(t, func() bool { return countMarked(inner.Root()) == 1 })
}

func TestCrossOriginDenialIsPermanent(t *testing.T) {
	doc := memdom.MustParse(`<html><body><iframe></iframe></body></html>`)
	doc.MarkFrameCrossOrigin(findTag(doc, "iframe"))
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)
	waitFor(t, func() bool { return eng.Status().FramesDenied == 1 })

	// Sweeps keep running; the denial must not flip or duplicate.
	time.Sleep(50 * time.Millisecond)
	st := eng.Status()
	if st.FramesDenied != 1 || st.FramesEntered != 0 {
		t.Errorf("after sweeps: denied=%d entered=%d, want 1/0", st.FramesDenied, st.FramesEntered)
	}
}

func TestShadowFragmentRoundTrip(t *testing.T) {
	doc := memdom.MustParse(`<html><body><div id="host"></div></body></html>`)
	store := newMemStore(nil)
	eng := newTestEngine(t, store)

	eng.Attach(doc)
	waitDrained(t, eng)

	frag := doc.AttachShadow(findTag(doc, "div"))
	if frag == nil {
		t.Fatal("AttachShadow returned nil")
	}
	waitFor(t, func() bool { return frag.HasStylesheet("fontpatch-style") })

	if _, err := frag.AppendHTML(frag.Root(), `<span>影子内容</span>`); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return countMarked(frag.Root()) == 1 })

	store.Update(func(c *engine.Config) { c.Enabled = false })
	eng.FullRescan()

	if got := countMarked(frag.Root()); got != 0 {
		t.Errorf("fragment marked after toggle off: got %d, want 0", got)
	}
	if frag.HasStylesheet("fontpatch-style") {
		t.Error("fragment stylesheet still present after toggle off")
	}
}

// idleDoc exposes a manual idle-time primitive so tests can release batch
// slices one at a time.
type idleDoc struct {
	*memdom.Document

	mu      sync.Mutex
	pending []func()
}

func (d *idleDoc) RequestIdle(fn func(), _ time.Duration) func() {
	d.mu.Lock()
	d.pending = append(d.pending, fn)
	d.mu.Unlock()
	return func() {}
}

func (d *idleDoc) release() bool {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return false
	}
	fn := d.pending[0]
	d.pending = d.pending[1:]
	d.mu.Unlock()
	fn()
	return true
}

func TestBatchSlicesAreBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	for i := 0; i < 7; i++ {
		b.WriteString(`<p>第七段</p>`)
	}
	b.WriteString(`</body></html>`)

	doc := &idleDoc{Document: memdom.MustParse(b.String())}
	store := newMemStore(nil)
	eng := engine.New(engine.Params{
		Store:    store,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		BatchCap: 3,
	})
	t.Cleanup(eng.Stop)

	eng.Attach(doc)

	slices := 0
	for doc.release() {
		slices++
		// Status round-trips through the loop, so the posted slice (and
		// its follow-up idle request) has completed by the time it returns.
		eng.Status()
	}

	if slices != 3 { // ceil(7/3)
		t.Errorf("slices: got %d, want 3", slices)
	}
	if got := countMarked(doc.Root()); got != 7 {
		t.Errorf("marked elements: got %d, want 7", got)
	}
}

func TestGateOffAbandonsQueue(t *testing.T) {
	doc := &idleDoc{Document: memdom.MustParse(`<html><body><p>漢字</p><p>中文</p></body></html>`)}
	store := newMemStore(nil)
	eng := engine.New(engine.Params{
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(eng.Stop)

	eng.Attach(doc)
	if got := eng.Status().QueueDepth; got != 2 {
		t.Fatalf("queue depth before release: got %d, want 2", got)
	}

	// The gate goes inactive between scheduling and the slice running.
	store.Update(func(c *engine.Config) { c.Enabled = false })
	if !doc.release() {
		t.Fatal("no pending idle request")
	}

	waitFor(t, func() bool { return eng.Status().QueueDepth == 0 })
	if got := countMarked(doc.Root()); got != 0 {
		t.Errorf("marked elements: got %d, want 0", got)
	}
}

func TestRemovedElementDoesNotAbortBatch(t *testing.T) {
	doc := &idleDoc{Document: memdom.MustParse(`<html><body><p id="gone">漢字</p><p>中文</p></body></html>`)}
	eng := engine.New(engine.Params{
		Store:  newMemStore(nil),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(eng.Stop)

	eng.Attach(doc)

	// The first candidate's parent races away before the slice runs.
	var gone dom.Element
	doc.Root().Walk(func(n dom.Node) bool {
		if el, ok := n.(dom.Element); ok && el.Tag() == "p" {
			gone = el
			return false
		}
		return true
	})
	doc.Remove(gone)

	if !doc.release() {
		t.Fatal("no pending idle request")
	}
	waitFor(t, func() bool { return eng.Status().QueueDepth == 0 })

	// The surviving element was still patched; the detached one was skipped.
	if got := countMarked(doc.Root()); got != 1 {
		t.Errorf("marked elements: got %d, want 1", got)
	}
	if _, ok := gone.Attr("data-fontpatch-status"); ok {
		t.Error("detached element carries a patch marker")
	}
}

func TestRemovedFragmentScopePruned(t *testing.T) {
	doc := memdom.MustParse(`<html><body><div id="host">x</div></body></html>`)
	eng := newTestEngine(t, newMemStore(nil))

	eng.Attach(doc)
	waitDrained(t, eng)

	host := findTag(doc, "div")
	if doc.AttachShadow(host) == nil {
		t.Fatal("AttachShadow returned nil")
	}
	waitFor(t, func() bool { return eng.Status().Scopes == 2 })

	// The host leaves the tree, taking the fragment with it. The record
	// must not survive the next activation cycle.
	doc.Remove(host)
	eng.FullRescan()
	waitDrained(t, eng)

	if got := eng.Status().Scopes; got != 1 {
		t.Errorf("scopes after removal and rescan: got %d, want 1", got)
	}
}

func TestPatchedParentNotRequeued(t *testing.T) {
	doc := &idleDoc{Document: memdom.MustParse(`<html><body><p>漢字</p></body></html>`)}
	eng := engine.New(engine.Params{
		Store:  newMemStore(nil),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(eng.Stop)

	eng.Attach(doc)
	for doc.release() {
		eng.Status()
	}
	p := findTag(doc.Document, "p")
	if _, ok := p.Attr("data-fontpatch-status"); !ok {
		t.Fatal("element not patched")
	}

	// More text lands under the already-patched element; its font is
	// already settled, so nothing should be queued or scheduled.
	if _, err := doc.AppendHTML(p, `追加の文章`); err != nil {
		t.Fatal(err)
	}
	eng.Status() // barrier: the mutation scan has run

	if got := eng.Status().QueueDepth; got != 0 {
		t.Errorf("queue depth after insert under patched parent: got %d, want 0", got)
	}
	if doc.release() {
		t.Error("batch scheduled for text under a patched parent")
	}
}

func TestEventsEmitted(t *testing.T) {
	var mu sync.Mutex
	var types []event.Type
	sink := engine.NewCallbackSink(func(_ context.Context, ev event.Event) error {
		mu.Lock()
		types = append(types, ev.Type)
		mu.Unlock()
		return nil
	})

	doc := memdom.MustParse(`<html><body><p>漢字</p></body></html>`,
		memdom.WithHostname("example.org"))
	eng := newTestEngine(t, newMemStore(nil), sink)

	eng.Attach(doc)
	waitDrained(t, eng)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		var haveActivate, haveBatch bool
		for _, ty := range types {
			switch ty {
			case event.TypeActivate:
				haveActivate = true
			case event.TypePatchBatch:
				haveBatch = true
			}
		}
		return haveActivate && haveBatch
	})
}
