package cdpdom

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kagemori/fontpatch/dom"
)

// Element wraps a live element. It starts either from a resolved
// rod.Element or from a DOM snapshot node; snapshot nodes resolve
// lazily the first time a style or attribute operation needs a remote
// object.
type Element struct {
	doc   *Document
	el    *rod.Element
	node  *proto.DOMNode
	par   *Element
	xpath string
	key   string
}

func newElement(doc *Document, el *rod.Element) *Element {
	return &Element{doc: doc, el: el}
}

func (e *Element) Type() dom.NodeType { return dom.ElementNode }

func (e *Element) Parent() dom.Element {
	if e.par != nil {
		return e.par
	}
	el, err := e.resolve()
	if err != nil {
		return nil
	}
	p, err := el.Sleeper(rod.NotFoundSleeper).Parent()
	if err != nil {
		return nil
	}
	return newElement(e.doc, p)
}

func (e *Element) Tag() string {
	if e.node != nil {
		return strings.ToLower(e.node.NodeName)
	}
	el, err := e.resolve()
	if err != nil {
		return ""
	}
	res, err := el.Eval(`() => this.tagName ? this.tagName.toLowerCase() : ""`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// Walk traverses the element's subtree from one DescribeNode snapshot.
// A single round trip beats per-node CDP calls on large subtrees; nodes
// that mutate mid-walk surface later as detached and are skipped by the
// caller.
func (e *Element) Walk(fn func(dom.Node) bool) {
	snap := e.snapshot()
	if snap == nil {
		return
	}
	walkSnapshot(e.doc, snap, nil, fn)
}

func walkSnapshot(doc *Document, n *proto.DOMNode, parent *Element, fn func(dom.Node) bool) bool {
	switch n.NodeType {
	case 1: // element
		el := &Element{doc: doc, node: n, par: parent}
		if !fn(el) {
			return false
		}
		for _, c := range n.Children {
			if !walkSnapshot(doc, c, el, fn) {
				return false
			}
		}
	case 3: // text
		t := &textNode{data: n.NodeValue, par: parent}
		if !fn(t) {
			return false
		}
	}
	return true
}

func (e *Element) snapshot() *proto.DOMNode {
	el, err := e.resolve()
	if err != nil {
		return nil
	}
	depth := -1 // whole subtree
	res, err := proto.DOMDescribeNode{
		ObjectID: el.Object.ObjectID,
		Depth:    &depth,
	}.Call(e.doc.page)
	if err != nil {
		return nil
	}
	return res.Node
}

func (e *Element) Attr(name string) (string, bool) {
	el, err := e.resolve()
	if err != nil {
		return "", false
	}
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *Element) SetAttr(name, value string) error {
	return e.evalVoid(`(n, v) => this.setAttribute(n, v)`, name, value)
}

func (e *Element) RemoveAttr(name string) error {
	return e.evalVoid(`(n) => this.removeAttribute(n)`, name)
}

func (e *Element) InlineFontFamily() (string, error) {
	return e.evalStr(`() => this.style ? this.style.fontFamily : ""`)
}

func (e *Element) SetInlineFontFamily(value string) error {
	if value == "" {
		return e.evalVoid(`() => this.style.removeProperty('font-family')`)
	}
	return e.evalVoid(`(v) => this.style.setProperty('font-family', v)`, value)
}

func (e *Element) ComputedFontFamily() (string, error) {
	return e.evalStr(`() => getComputedStyle(this).fontFamily`)
}

func (e *Element) ShadowRoot() dom.Document {
	el, err := e.resolve()
	if err != nil {
		return nil
	}
	root, err := el.Sleeper(rod.NotFoundSleeper).ShadowRoot()
	if err != nil {
		return nil
	}
	return newFragmentDocument(e.doc, root)
}

func (e *Element) IsFrame() bool {
	tag := e.Tag()
	return tag == "iframe" || tag == "frame"
}

// FrameDocument enters the frame interior. A frame whose interior
// evaluator is unreachable is treated as cross-origin denied, which is
// permanent; a readyState of "loading" is recoverable through OnLoad.
func (e *Element) FrameDocument() (dom.Document, error) {
	if !e.IsFrame() {
		return nil, dom.ErrNotFrame
	}
	el, err := e.resolve()
	if err != nil {
		return nil, dom.ErrDetached
	}
	framePage, err := el.Frame()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", dom.ErrDenied, err)
	}
	res, err := framePage.Sleeper(rod.NotFoundSleeper).Eval(`() => document.readyState`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", dom.ErrDenied, err)
	}
	if dom.ReadyState(res.Value.Str()) == dom.ReadyLoading {
		return nil, dom.ErrNotReady
	}
	return newDocument(e.doc.ctx, framePage, e.doc.hostname, e.doc.logger), nil
}

// OnLoad registers a one-shot load listener, delivered through the
// injected script's frame load hook.
func (e *Element) OnLoad(fn func()) (func(), error) {
	if err := e.doc.ensureInjected(); err != nil {
		return nil, err
	}
	xpath, err := e.ensureXPath()
	if err != nil {
		return nil, err
	}
	e.doc.mu.Lock()
	e.doc.loadFns[xpath] = append(e.doc.loadFns[xpath], fn)
	idx := len(e.doc.loadFns[xpath]) - 1
	e.doc.mu.Unlock()

	return func() {
		e.doc.mu.Lock()
		if fns := e.doc.loadFns[xpath]; idx < len(fns) {
			fns[idx] = nil
		}
		e.doc.mu.Unlock()
	}, nil
}

func (e *Element) Key() string {
	if e.key != "" {
		return e.key
	}
	if e.node != nil && e.node.BackendNodeID != 0 {
		e.key = fmt.Sprintf("cdpel:%d", e.node.BackendNodeID)
		return e.key
	}
	el, err := e.resolve()
	if err != nil {
		return fmt.Sprintf("cdpel:detached:%p", e)
	}
	res, err := proto.DOMDescribeNode{ObjectID: el.Object.ObjectID}.Call(e.doc.page)
	if err != nil {
		return fmt.Sprintf("cdpel:detached:%p", e)
	}
	e.key = fmt.Sprintf("cdpel:%d", res.Node.BackendNodeID)
	return e.key
}

// resolve turns a snapshot node into a live remote object on demand.
func (e *Element) resolve() (*rod.Element, error) {
	if e.el != nil {
		return e.el, nil
	}
	if e.node == nil {
		return nil, dom.ErrDetached
	}
	el, err := e.doc.page.ElementFromNode(e.node)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", dom.ErrDetached, err)
	}
	e.el = el
	return el, nil
}

func (e *Element) evalVoid(js string, args ...any) error {
	el, err := e.resolve()
	if err != nil {
		return err
	}
	if _, err := el.Eval(js, args...); err != nil {
		return fmt.Errorf("%w: %s", dom.ErrDetached, err)
	}
	return nil
}

func (e *Element) evalStr(js string, args ...any) (string, error) {
	el, err := e.resolve()
	if err != nil {
		return "", err
	}
	res, err := el.Eval(js, args...)
	if err != nil {
		return "", fmt.Errorf("%w: %s", dom.ErrDetached, err)
	}
	return res.Value.Str(), nil
}

// ensureXPath computes the element's tag-indexed xpath, the same form
// the injected script reports.
func (e *Element) ensureXPath() (string, error) {
	if e.xpath != "" {
		return e.xpath, nil
	}
	xpath, err := e.evalStr(`() => {
		const parts = [];
		for (let el = this; el && el.nodeType === Node.ELEMENT_NODE; el = el.parentElement) {
			let idx = 1;
			for (let sib = el.previousElementSibling; sib; sib = sib.previousElementSibling) {
				if (sib.tagName === el.tagName) idx++;
			}
			parts.unshift(el.tagName.toLowerCase() + "[" + idx + "]");
		}
		return "/" + parts.join("/");
	}`)
	if err != nil {
		return "", err
	}
	e.xpath = xpath
	return xpath, nil
}

// textNode is a character-data node lifted from a subtree snapshot.
type textNode struct {
	data string
	par  *Element
}

func (t *textNode) Type() dom.NodeType { return dom.TextNode }
func (t *textNode) Data() string       { return t.data }

func (t *textNode) Parent() dom.Element {
	if t.par == nil {
		return nil
	}
	return t.par
}
