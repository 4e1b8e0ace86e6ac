// Package memdom implements the dom interfaces over an in-memory tree
// parsed with golang.org/x/net/html. Computed styles come from a
// simplified cascade over injected and author stylesheets (douceur for
// parsing, cascadia for selector matching).
//
// memdom is the offline and test backend: tests drive mutations through
// AppendHTML, AttachShadow, SetFrameDocument and observe the engine's
// behaviour deterministically.
package memdom

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/kagemori/fontpatch/dom"
)

// Document is one memdom scope: a parsed page, a frame interior, or a
// shadow fragment.
type Document struct {
	mu sync.Mutex

	root     *html.Node
	hostname string
	ready    dom.ReadyState

	// host is set on shadow fragments: the element the fragment is
	// attached to. Style inheritance crosses this boundary.
	host *Element

	sheets []*stylesheet

	observers  map[int]func([]dom.Node)
	fragFns    map[int]func(dom.Element, dom.Document)
	nextHandle int

	// meta is the per-node side table (shadow fragments, frame state).
	meta map[*html.Node]*nodeMeta
}

type nodeMeta struct {
	shadow *Document
	frame  *frameState
}

type frameState struct {
	doc         *Document
	crossOrigin bool
	loadFns     []func()
}

// Option configures a Document at parse time.
type Option func(*Document)

// WithHostname sets the hostname reported by the document.
func WithHostname(h string) Option { return func(d *Document) { d.hostname = h } }

// WithReadyState overrides the initial ready state. Default: complete.
func WithReadyState(rs dom.ReadyState) Option { return func(d *Document) { d.ready = rs } }

// Parse builds a Document from an HTML string.
func Parse(src string, opts ...Option) (*Document, error) {
	n, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	d := &Document{
		root:      n,
		ready:     dom.ReadyComplete,
		observers: make(map[int]func([]dom.Node)),
		fragFns:   make(map[int]func(dom.Element, dom.Document)),
		meta:      make(map[*html.Node]*nodeMeta),
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// MustParse is Parse that panics on error. For tests and fixtures.
func MustParse(src string, opts ...Option) *Document {
	d, err := Parse(src, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) Key() string      { return fmt.Sprintf("memdoc:%p", d) }
func (d *Document) Hostname() string { return d.hostname }

func (d *Document) ReadyState() dom.ReadyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// SetReadyState updates the lifecycle state (test API).
func (d *Document) SetReadyState(rs dom.ReadyState) {
	d.mu.Lock()
	d.ready = rs
	d.mu.Unlock()
}

// Root returns the documentElement (or the fragment root).
func (d *Document) Root() dom.Element {
	if d.host != nil {
		// Fragment: the synthetic root element itself.
		return d.element(d.root)
	}
	d.mu.Lock()
	n := findElement(d.root, "html")
	d.mu.Unlock()
	if n == nil {
		return nil
	}
	return d.element(n)
}

func (d *Document) Body() dom.Element {
	if d.host != nil {
		return d.element(d.root)
	}
	d.mu.Lock()
	n := findElement(d.root, "body")
	d.mu.Unlock()
	if n == nil {
		return nil
	}
	return d.element(n)
}

// Frames lists sub-document containers in document order.
func (d *Document) Frames() []dom.Element {
	d.mu.Lock()
	var nodes []*html.Node
	walkNodes(d.scopeRoot(), func(n *html.Node) bool {
		if n.Type == html.ElementNode && isFrameTag(n.Data) {
			nodes = append(nodes, n)
		}
		return true
	})
	d.mu.Unlock()

	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.element(n))
	}
	return out
}

func (d *Document) Observe(fn func(inserted []dom.Node)) (func(), error) {
	d.mu.Lock()
	d.nextHandle++
	h := d.nextHandle
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
	d.mu.Lock()
	d.nextHandle++
	h := d.nextHandle
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

// AppendHTML parses fragment in the context of parent, appends the result,
// and delivers the inserted top-level nodes to observers as one batch.
// This is how tests and offline feeds mutate the tree.
func (d *Document) AppendHTML(parent dom.Element, fragment string) ([]dom.Node, error) {
	pe, ok := parent.(*Element)
	if !ok || pe.doc != d {
		return nil, fmt.Errorf("memdom: append: foreign parent element")
	}

	d.mu.Lock()
	if !d.rootedLocked(pe.n) {
		d.mu.Unlock()
		return nil, dom.ErrDetached
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), pe.n)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("memdom: parse fragment: %w", err)
	}
	inserted := make([]dom.Node, 0, len(nodes))
	for _, n := range nodes {
		pe.n.AppendChild(n)
		if wrapped := d.wrap(n); wrapped != nil {
			inserted = append(inserted, wrapped)
		}
	}
	d.mu.Unlock()

	d.notify(inserted)
	return inserted, nil
}

// Remove detaches an element from the tree (test API for mutation races).
func (d *Document) Remove(el dom.Element) {
	e, ok := el.(*Element)
	if !ok {
		return
	}
	d.mu.Lock()
	if e.n.Parent != nil {
		e.n.Parent.RemoveChild(e.n)
	}
	d.mu.Unlock()
}

func (d *Document) notify(inserted []dom.Node) {
	if len(inserted) == 0 {
		return
	}
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

// scopeRoot is the traversal root: the parse root for pages, the fragment
// element for shadow scopes.
func (d *Document) scopeRoot() *html.Node { return d.root }

// rooted reports whether n is still attached under the scope root.
func (d *Document) rooted(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rootedLocked(n)
}

func (d *Document) rootedLocked(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// snapshotNodes collects n and its descendants in document order under
// the lock, so traversal callbacks run without it. Callbacks may observe
// nodes a concurrent mutation has already detached; callers treat those
// like any other mutation race.
func (d *Document) snapshotNodes(n *html.Node) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*html.Node
	walkNodes(n, func(c *html.Node) bool {
		out = append(out, c)
		return true
	})
	return out
}

func (d *Document) metaFor(n *html.Node) *nodeMeta {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.meta[n]
	if m == nil {
		m = &nodeMeta{}
		d.meta[n] = m
	}
	return m
}

func (d *Document) element(n *html.Node) *Element { return &Element{doc: d, n: n} }

func (d *Document) wrap(n *html.Node) dom.Node {
	switch n.Type {
	case html.ElementNode:
		return d.element(n)
	case html.TextNode:
		return &Text{doc: d, n: n}
	}
	return nil
}

func findElement(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walkNodes(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

// walkNodes visits n and its descendants in document order.
func walkNodes(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkNodes(c, fn) {
			return false
		}
	}
	return true
}

func isFrameTag(tag string) bool { return tag == "iframe" || tag == "frame" }
