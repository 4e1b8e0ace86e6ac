package cdpdom

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kagemori/fontpatch/dom"
)

//go:embed observer.js
var observerJS string

const bindingName = "__fontpatch_binding"

// Document wraps a live page (or one of its frame interiors) as a dom
// scope. Shadow fragments are wrapped by fragmentDocument instead.
type Document struct {
	page     *rod.Page
	hostname string
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	injected  bool
	observers map[int]func([]dom.Node)
	fragFns   map[int]func(dom.Element, dom.Document)
	loadFns   map[string][]func()
	idleFns   map[int]func()
	nextID    int
}

func newDocument(ctx context.Context, page *rod.Page, hostname string, logger *slog.Logger) *Document {
	cctx, cancel := context.WithCancel(ctx)
	return &Document{
		page:      page,
		hostname:  hostname,
		logger:    logger,
		ctx:       cctx,
		cancel:    cancel,
		observers: make(map[int]func([]dom.Node)),
		fragFns:   make(map[int]func(dom.Element, dom.Document)),
		loadFns:   make(map[string][]func()),
		idleFns:   make(map[int]func()),
	}
}

// Close detaches the binding listener. The page itself stays open.
func (d *Document) Close() { d.cancel() }

func (d *Document) Key() string {
	// FrameID disambiguates same-process frame interiors that share the
	// parent's target.
	return "cdp:" + string(d.page.TargetID) + "/" + string(d.page.FrameID)
}

func (d *Document) Hostname() string { return d.hostname }

func (d *Document) ReadyState() dom.ReadyState {
	res, err := d.page.Eval(`() => document.readyState`)
	if err != nil {
		return dom.ReadyLoading
	}
	return dom.ReadyState(res.Value.Str())
}

func (d *Document) Root() dom.Element { return d.elementBySelector("html") }
func (d *Document) Body() dom.Element { return d.elementBySelector("body") }

func (d *Document) elementBySelector(sel string) dom.Element {
	el, err := d.page.Sleeper(rod.NotFoundSleeper).Element(sel)
	if err != nil {
		return nil
	}
	return newElement(d, el)
}

func (d *Document) Frames() []dom.Element {
	els, err := d.page.Sleeper(rod.NotFoundSleeper).Elements("iframe, frame")
	if err != nil {
		return nil
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, newElement(d, el))
	}
	return out
}

// InjectStylesheet installs css in a <style> element keyed by id; a
// second injection with the same id replaces the text in place.
func (d *Document) InjectStylesheet(id, css string) error {
	_, err := d.page.Eval(`(id, css) => {
		let el = document.getElementById(id);
		if (!el) {
			el = document.createElement('style');
			el.id = id;
			(document.head || document.documentElement).appendChild(el);
		}
		el.textContent = css;
	}`, id, css)
	if err != nil {
		return fmt.Errorf("cdpdom: inject stylesheet: %w", err)
	}
	return nil
}

func (d *Document) RemoveStylesheet(id string) error {
	_, err := d.page.Eval(`(id) => {
		const el = document.getElementById(id);
		if (el) el.remove();
	}`, id)
	if err != nil {
		return fmt.Errorf("cdpdom: remove stylesheet: %w", err)
	}
	return nil
}

func (d *Document) Observe(fn func(inserted []dom.Node)) (func(), error) {
	if err := d.ensureInjected(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.nextID++
	h := d.nextID
	d.observers[h] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.observers, h)
			d.mu.Unlock()
		})
	}, nil
}

func (d *Document) OnFragmentAttached(fn func(host dom.Element, root dom.Document)) func() {
	if err := d.ensureInjected(); err != nil {
		d.logger.Warn("cdpdom: fragment interception unavailable", "error", err)
		return func() {}
	}
	d.mu.Lock()
	d.nextID++
	h := d.nextID
	d.fragFns[h] = fn
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.fragFns, h)
			d.mu.Unlock()
		})
	}
}

// RequestIdle implements dom.IdleHost through the page's own
// requestIdleCallback, so batch slices really do run when the renderer
// is idle. The timeout is the starvation ceiling.
func (d *Document) RequestIdle(fn func(), timeout time.Duration) func() {
	if err := d.ensureInjected(); err != nil {
		// No binding, no idle callbacks; degrade to a timer.
		t := time.AfterFunc(timeout, fn)
		return func() { t.Stop() }
	}

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.idleFns[id] = fn
	d.mu.Unlock()

	if _, err := d.page.Eval(`(id, timeout) => window.__fontpatch_idle(id, timeout)`, id, int(timeout.Milliseconds())); err != nil {
		d.logger.Debug("cdpdom: idle request failed", "error", err)
	}

	return func() {
		d.mu.Lock()
		delete(d.idleFns, id)
		d.mu.Unlock()
	}
}

// ensureInjected installs the binding, the observer script, and the
// dispatch listener exactly once per page.
func (d *Document) ensureInjected() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.injected {
		return nil
	}

	err := proto.RuntimeAddBinding{Name: bindingName}.Call(d.page)
	if err != nil {
		d.logger.Warn("cdpdom: addBinding failed (may already exist)", "error", err)
	}

	go d.listenBinding()

	if _, err := d.page.Eval(observerJS); err != nil {
		return fmt.Errorf("cdpdom: inject observer: %w", err)
	}
	d.injected = true
	return nil
}

// listenBinding receives JS signals via Runtime.bindingCalled and routes
// them: inserts to observers, shadow attachments to fragment handlers,
// frame loads to their listeners, idle completions to their requests.
func (d *Document) listenBinding() {
	d.page.Context(d.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var records []struct {
			Op    string `json:"op"`
			XPath string `json:"xpath"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &records); err != nil {
			d.logger.Warn("cdpdom: parse binding payload", "error", err)
			return
		}

		var inserted []dom.Node
		for _, rec := range records {
			switch rec.Op {
			case "insert":
				if el := d.elementByXPath(rec.XPath); el != nil {
					inserted = append(inserted, el)
				}
			case "__shadow":
				d.handleShadow(rec.XPath)
			case "__load":
				d.handleLoad(rec.XPath)
			case "__idle":
				if id, err := strconv.Atoi(rec.XPath); err == nil {
					d.handleIdle(id)
				}
			}
		}
		if len(inserted) > 0 {
			d.mu.Lock()
			fns := make([]func([]dom.Node), 0, len(d.observers))
			for _, fn := range d.observers {
				fns = append(fns, fn)
			}
			d.mu.Unlock()
			for _, fn := range fns {
				fn(inserted)
			}
		}
	})()
}

func (d *Document) handleShadow(hostXPath string) {
	host := d.elementByXPath(hostXPath)
	if host == nil {
		return
	}
	root := host.ShadowRoot()
	if root == nil {
		return
	}
	d.mu.Lock()
	fns := make([]func(dom.Element, dom.Document), 0, len(d.fragFns))
	for _, fn := range d.fragFns {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(host, root)
	}
}

func (d *Document) handleLoad(xpath string) {
	d.mu.Lock()
	fns := d.loadFns[xpath]
	delete(d.loadFns, xpath)
	d.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

func (d *Document) handleIdle(id int) {
	d.mu.Lock()
	fn := d.idleFns[id]
	delete(d.idleFns, id)
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *Document) elementByXPath(xpath string) *Element {
	if xpath == "" {
		return nil
	}
	el, err := d.page.Sleeper(rod.NotFoundSleeper).ElementX(xpath)
	if err != nil {
		// The node raced away before we could resolve it; fine.
		return nil
	}
	e := newElement(d, el)
	e.xpath = xpath
	return e
}
