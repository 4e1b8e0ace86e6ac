package memdom

import (
	"sync"

	"golang.org/x/net/html"

	"github.com/kagemori/fontpatch/dom"
)

// FrameDocument returns the interior document of a frame container.
func (e *Element) FrameDocument() (dom.Document, error) {
	if !e.IsFrame() {
		return nil, dom.ErrNotFrame
	}
	m := e.doc.metaFor(e.n)
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if m.frame == nil || m.frame.doc == nil {
		if m.frame != nil && m.frame.crossOrigin {
			return nil, dom.ErrDenied
		}
		return nil, dom.ErrNotReady
	}
	if m.frame.crossOrigin {
		return nil, dom.ErrDenied
	}
	return m.frame.doc, nil
}

// OnLoad registers a one-shot completion listener on a frame container.
func (e *Element) OnLoad(fn func()) (func(), error) {
	if !e.IsFrame() {
		return nil, dom.ErrNotFrame
	}
	m := e.doc.metaFor(e.n)
	e.doc.mu.Lock()
	if m.frame == nil {
		m.frame = &frameState{}
	}
	m.frame.loadFns = append(m.frame.loadFns, fn)
	idx := len(m.frame.loadFns) - 1
	e.doc.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.doc.mu.Lock()
			if m.frame != nil && idx < len(m.frame.loadFns) {
				m.frame.loadFns[idx] = nil
			}
			e.doc.mu.Unlock()
		})
	}, nil
}

// SetFrameDocument attaches an interior document to a frame container and
// fires its pending load listeners, emulating the container's load event
// (test API).
func (d *Document) SetFrameDocument(frame dom.Element, inner *Document) {
	e, ok := frame.(*Element)
	if !ok || !e.IsFrame() {
		return
	}
	m := d.metaFor(e.n)
	d.mu.Lock()
	if m.frame == nil {
		m.frame = &frameState{}
	}
	m.frame.doc = inner
	fns := m.frame.loadFns
	m.frame.loadFns = nil
	d.mu.Unlock()

	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}

// MarkFrameCrossOrigin makes every inspection of the container fail with
// ErrDenied (test API for the permanent-denial path).
func (d *Document) MarkFrameCrossOrigin(frame dom.Element) {
	e, ok := frame.(*Element)
	if !ok || !e.IsFrame() {
		return
	}
	m := d.metaFor(e.n)
	d.mu.Lock()
	if m.frame == nil {
		m.frame = &frameState{}
	}
	m.frame.crossOrigin = true
	d.mu.Unlock()
}

// AttachShadow creates an open shadow fragment on host and reports it to
// the scope's fragment interceptors before returning, matching the
// creation-point interception contract: the interceptor sees the root
// before the creating code does.
func (d *Document) AttachShadow(host dom.Element) *Document {
	e, ok := host.(*Element)
	if !ok || e.doc != d {
		return nil
	}

	rootNode := &html.Node{Type: html.ElementNode, Data: "shadow-root"}
	frag := &Document{
		root:      rootNode,
		hostname:  d.hostname,
		ready:     dom.ReadyComplete,
		host:      e,
		observers: make(map[int]func([]dom.Node)),
		fragFns:   make(map[int]func(dom.Element, dom.Document)),
		meta:      make(map[*html.Node]*nodeMeta),
	}

	m := d.metaFor(e.n)
	d.mu.Lock()
	m.shadow = frag
	fns := make([]func(dom.Element, dom.Document), 0, len(d.fragFns))
	for _, fn := range d.fragFns {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(e, frag)
	}
	return frag
}
