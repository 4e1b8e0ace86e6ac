package memdom

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/kagemori/fontpatch/dom"
)

// Element wraps an *html.Node element within one scope. Wrappers are
// created on demand; identity comparisons go through Key, never through
// interface equality.
type Element struct {
	doc *Document
	n   *html.Node
}

// Text wraps an *html.Node text node.
type Text struct {
	doc *Document
	n   *html.Node
}

func (t *Text) Type() dom.NodeType { return dom.TextNode }
func (t *Text) Data() string       { return t.n.Data }

func (t *Text) Parent() dom.Element {
	t.doc.mu.Lock()
	p := t.n.Parent
	t.doc.mu.Unlock()
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return t.doc.element(p)
}

func (e *Element) Type() dom.NodeType { return dom.ElementNode }
func (e *Element) Tag() string        { return e.n.Data }
func (e *Element) Key() string        { return fmt.Sprintf("memel:%p", e.n) }

func (e *Element) Parent() dom.Element {
	// A fragment root has no parent inside its own scope.
	if e.n == e.doc.root {
		return nil
	}
	e.doc.mu.Lock()
	p := e.n.Parent
	e.doc.mu.Unlock()
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.element(p)
}

// Walk snapshots the subtree under the lock and runs fn without it, so
// callbacks are free to mutate attributes or the tree.
func (e *Element) Walk(fn func(dom.Node) bool) {
	for _, n := range e.doc.snapshotNodes(e.n) {
		w := e.doc.wrap(n)
		if w == nil {
			continue
		}
		if !fn(w) {
			return
		}
	}
}

func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, a := range e.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) SetAttr(name, value string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if !e.doc.rootedLocked(e.n) {
		return dom.ErrDetached
	}
	for i, a := range e.n.Attr {
		if a.Key == name {
			e.n.Attr[i].Val = value
			return nil
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

func (e *Element) RemoveAttr(name string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for i, a := range e.n.Attr {
		if a.Key == name {
			e.n.Attr = append(e.n.Attr[:i], e.n.Attr[i+1:]...)
			return nil
		}
	}
	return nil
}

func (e *Element) ShadowRoot() dom.Document {
	e.doc.mu.Lock()
	m := e.doc.meta[e.n]
	e.doc.mu.Unlock()
	if m == nil || m.shadow == nil {
		return nil
	}
	return m.shadow
}

func (e *Element) IsFrame() bool { return isFrameTag(e.n.Data) }
