package cdpdom

import (
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/proto"

	"github.com/kagemori/fontpatch/dom"
)

func elemNode(tag string, children ...*proto.DOMNode) *proto.DOMNode {
	return &proto.DOMNode{NodeType: 1, NodeName: strings.ToUpper(tag), Children: children}
}

func textSnap(data string) *proto.DOMNode {
	return &proto.DOMNode{NodeType: 3, NodeValue: data}
}

// Interface conformance is the contract the engine relies on; these
// assertions keep the backend honest without needing a live browser.
var (
	_ dom.Document = (*Document)(nil)
	_ dom.IdleHost = (*Document)(nil)
	_ dom.Document = (*fragmentDocument)(nil)
	_ dom.Element  = (*Element)(nil)
	_ dom.Text     = (*textNode)(nil)
)

func TestWalkSnapshotOrderAndStop(t *testing.T) {
	// A detached snapshot tree is enough to exercise the traversal logic.
	tree := elemNode("div",
		elemNode("p", textSnap("hello")),
		elemNode("span"),
	)

	var tags []string
	walkSnapshot(nil, tree, nil, func(n dom.Node) bool {
		switch v := n.(type) {
		case dom.Element:
			tags = append(tags, v.Tag())
		case dom.Text:
			tags = append(tags, "#text:"+v.Data())
		}
		return true
	})

	want := []string{"div", "p", "#text:hello", "span"}
	if len(tags) != len(want) {
		t.Fatalf("walk: got %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("walk[%d]: got %q, want %q", i, tags[i], want[i])
		}
	}

	// Returning false stops the traversal.
	visits := 0
	walkSnapshot(nil, tree, nil, func(dom.Node) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Errorf("visits after stop: got %d, want 1", visits)
	}
}

func TestTextNodeParentChain(t *testing.T) {
	p := elemNode("p", textSnap("x"))
	var text dom.Text
	walkSnapshot(nil, p, nil, func(n dom.Node) bool {
		if v, ok := n.(dom.Text); ok {
			text = v
		}
		return true
	})
	if text == nil {
		t.Fatal("text node not visited")
	}
	parent := text.Parent()
	if parent == nil || parent.Tag() != "p" {
		t.Errorf("parent: got %v, want p element", parent)
	}
}
