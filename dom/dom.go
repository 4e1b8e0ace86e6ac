// Package dom defines the host document-tree primitives consumed by the
// font-patch engine: filtered traversal, change observation, style access,
// stylesheet injection, and boundary entry into embedded sub-documents and
// shadow fragments.
//
// The engine owns none of this. Two backends implement these interfaces:
// memdom (an in-memory tree over golang.org/x/net/html, used by tests and
// offline processing) and cdpdom (a live Chrome page over go-rod/CDP).
package dom

import (
	"errors"
	"time"
)

// NodeType distinguishes the node kinds the engine cares about.
type NodeType int

const (
	ElementNode NodeType = iota + 1
	TextNode
)

// ReadyState mirrors the host document lifecycle.
type ReadyState string

const (
	ReadyLoading     ReadyState = "loading"
	ReadyInteractive ReadyState = "interactive"
	ReadyComplete    ReadyState = "complete"
)

// Sentinel errors for boundary entry. Denial is permanent; not-ready is
// recoverable via a load listener.
var (
	ErrNotFrame = errors.New("dom: element is not a sub-document container")
	ErrNotReady = errors.New("dom: sub-document not ready")
	ErrDenied   = errors.New("dom: cross-origin access denied")
	ErrDetached = errors.New("dom: node detached from document")
)

// Node is a tree node: either an Element or a Text.
type Node interface {
	Type() NodeType
	// Parent returns the parent element, or nil at a scope root.
	Parent() Element
}

// Text is a character-data node.
type Text interface {
	Node
	Data() string
}

// Element is an element node with style access and boundary hooks.
type Element interface {
	Node

	// Tag returns the lowercase tag name.
	Tag() string

	// Walk traverses the element and its descendants in document order.
	// Returning false from fn stops the traversal.
	Walk(fn func(Node) bool)

	Attr(name string) (string, bool)
	SetAttr(name, value string) error
	RemoveAttr(name string) error

	// InlineFontFamily returns the font-family value of the element's
	// inline style, or "" when unset.
	InlineFontFamily() (string, error)
	// SetInlineFontFamily sets the inline font-family. An empty value
	// removes the property.
	SetInlineFontFamily(value string) error
	// ComputedFontFamily returns the cascade-resolved font-family.
	ComputedFontFamily() (string, error)

	// ShadowRoot returns the element's open shadow fragment, or nil when
	// there is none or it is closed.
	ShadowRoot() Document

	// IsFrame reports whether the element embeds a sub-document.
	IsFrame() bool
	// FrameDocument returns the interior document of a frame container.
	// Errors: ErrNotFrame, ErrNotReady (still loading), ErrDenied
	// (cross-origin, permanent).
	FrameDocument() (Document, error)
	// OnLoad registers a one-shot listener fired when a frame container
	// finishes loading. The returned cancel detaches the listener.
	OnLoad(fn func()) (cancel func(), err error)

	// Key is a stable identity for side tables. It never keeps the
	// element alive.
	Key() string
}

// Document is one traversable scope: the top-level page, a frame interior,
// or a shadow fragment.
type Document interface {
	// Key is a stable identity for the scope side table.
	Key() string
	// Hostname of the owning page ("" for detached fragments).
	Hostname() string

	ReadyState() ReadyState
	// Root returns the scope's root element (documentElement or fragment
	// root), or nil while unavailable.
	Root() Element
	// Body returns the document body, or nil until one exists. For
	// fragments Body equals Root.
	Body() Element

	// Frames lists the sub-document containers currently present in the
	// scope, in document order.
	Frames() []Element

	// InjectStylesheet installs css under id, replacing any stylesheet
	// previously injected with the same id.
	InjectStylesheet(id, css string) error
	RemoveStylesheet(id string) error

	// Observe registers a subtree insertion observer. The handler receives
	// inserted nodes in insertion order, batched by the host. The returned
	// disconnect is idempotent.
	Observe(fn func(inserted []Node)) (disconnect func(), err error)

	// OnFragmentAttached intercepts shadow fragment creation within the
	// scope. The handler runs before the creating code regains control
	// where the backend can guarantee it (memdom does, cdpdom is
	// best-effort).
	OnFragmentAttached(fn func(host Element, root Document)) (cancel func())
}

// IdleHost is implemented by documents whose host offers a native
// idle-time scheduling primitive. The timeout is a starvation ceiling:
// fn runs no later than timeout after the request. Backends without the
// primitive simply do not implement this; the engine falls back to a
// short deferred timer.
type IdleHost interface {
	RequestIdle(fn func(), timeout time.Duration) (cancel func())
}
