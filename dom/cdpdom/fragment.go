package cdpdom

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kagemori/fontpatch/dom"
)

// fragmentDocument wraps an open shadow root as a traversable scope.
//
// Live mutation reports cannot be routed into a fragment over CDP: the
// xpath form the injected script uses does not pierce shadow boundaries,
// so Observe is a no-op here and content that mutates inside a fragment
// is picked up by the next scan or sweep of its host scope.
type fragmentDocument struct {
	owner *Document
	root  *rod.Element
	key   string
}

func newFragmentDocument(owner *Document, root *rod.Element) *fragmentDocument {
	f := &fragmentDocument{owner: owner, root: root}
	res, err := proto.DOMDescribeNode{ObjectID: root.Object.ObjectID}.Call(owner.page)
	if err == nil {
		f.key = fmt.Sprintf("cdpfrag:%d", res.Node.BackendNodeID)
	} else {
		f.key = fmt.Sprintf("cdpfrag:%p", root)
	}
	return f
}

func (f *fragmentDocument) Key() string      { return f.key }
func (f *fragmentDocument) Hostname() string { return f.owner.hostname }

func (f *fragmentDocument) ReadyState() dom.ReadyState { return dom.ReadyComplete }

func (f *fragmentDocument) Root() dom.Element {
	return newElement(f.owner, f.root)
}

func (f *fragmentDocument) Body() dom.Element { return f.Root() }

func (f *fragmentDocument) Frames() []dom.Element {
	els, err := f.root.Sleeper(rod.NotFoundSleeper).Elements("iframe, frame")
	if err != nil {
		return nil
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, newElement(f.owner, el))
	}
	return out
}

func (f *fragmentDocument) InjectStylesheet(id, css string) error {
	_, err := f.root.Eval(`(id, css) => {
		let el = this.querySelector('#' + CSS.escape(id));
		if (!el) {
			el = document.createElement('style');
			el.id = id;
			this.appendChild(el);
		}
		el.textContent = css;
	}`, id, css)
	if err != nil {
		return fmt.Errorf("cdpdom: inject fragment stylesheet: %w", err)
	}
	return nil
}

func (f *fragmentDocument) RemoveStylesheet(id string) error {
	_, err := f.root.Eval(`(id) => {
		const el = this.querySelector('#' + CSS.escape(id));
		if (el) el.remove();
	}`, id)
	if err != nil {
		return fmt.Errorf("cdpdom: remove fragment stylesheet: %w", err)
	}
	return nil
}

func (f *fragmentDocument) Observe(fn func([]dom.Node)) (func(), error) {
	return func() {}, nil
}

func (f *fragmentDocument) OnFragmentAttached(fn func(dom.Element, dom.Document)) func() {
	// Nested shadow attachments are reported on the owning page scope.
	return f.owner.OnFragmentAttached(fn)
}
