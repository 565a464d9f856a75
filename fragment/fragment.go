// Package fragment turns raw reply text into a small, typed markup tree.
//
// Format applies a fixed markdown subset (bold, italic, "- " list items and
// line breaks) and embeds image URLs. The resulting Fragment serializes to
// HTML with every Text node escaped, so the only tags that can ever appear in
// the output are strong, em, ul, li, br and img.
//
// Basic usage:
//
//	frag := fragment.Format("**Hi** there\n- one\n- two")
//	markup := frag.HTML()
package fragment

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// ImageAlt is the alt text given to every embedded image.
	ImageAlt = "Image"

	// ImageClass is the class attribute given to every embedded image.
	ImageClass = "chat-image"
)

// Kind identifies the type of a Node.
type Kind int

const (
	KindText Kind = iota
	KindStrong
	KindEmphasis
	KindListItem
	KindList
	KindLineBreak
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStrong:
		return "strong"
	case KindEmphasis:
		return "emphasis"
	case KindListItem:
		return "list_item"
	case KindList:
		return "list"
	case KindLineBreak:
		return "line_break"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Node is one element of a Fragment tree. Text is only set on KindText
// nodes and Src only on KindImage nodes; Children is only used by the
// container kinds (Strong, Emphasis, ListItem, List).
type Node struct {
	Kind     Kind
	Text     string
	Src      string
	Children []*Node
}

// Fragment is the render-ready form of a reply.
type Fragment struct {
	Nodes []*Node
}

// Plain wraps text in a fragment without applying any formatting rule.
func Plain(text string) *Fragment {
	if text == "" {
		return &Fragment{}
	}
	return &Fragment{Nodes: []*Node{{Kind: KindText, Text: text}}}
}

// IsEmpty reports whether the fragment has no content at all.
func (f *Fragment) IsEmpty() bool {
	return f == nil || len(f.Nodes) == 0
}

// HTML serializes the fragment to markup.
func (f *Fragment) HTML() string {
	var b strings.Builder
	// strings.Builder never returns a write error and the tree never places
	// children under a void element, so Render cannot fail here.
	_ = f.WriteHTML(&b)
	return b.String()
}

// WriteHTML serializes the fragment to w.
func (f *Fragment) WriteHTML(w io.Writer) error {
	if f == nil {
		return nil
	}
	for _, n := range f.Nodes {
		if err := html.Render(w, n.htmlNode()); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of nodes of kind k in the whole tree.
func (f *Fragment) Count(k Kind) int {
	if f == nil {
		return 0
	}
	total := 0
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.Kind == k {
				total++
			}
			walk(n.Children)
		}
	}
	walk(f.Nodes)
	return total
}

// htmlNode converts n into an x/net/html node. Text is carried as a
// TextNode, which html.Render escapes.
func (n *Node) htmlNode() *html.Node {
	switch n.Kind {
	case KindText:
		return &html.Node{Type: html.TextNode, Data: n.Text}
	case KindLineBreak:
		return element(atom.Br)
	case KindImage:
		img := element(atom.Img)
		img.Attr = []html.Attribute{
			{Key: "src", Val: n.Src},
			{Key: "alt", Val: ImageAlt},
			{Key: "class", Val: ImageClass},
			{Key: "loading", Val: "lazy"},
		}
		return img
	}

	var el *html.Node
	switch n.Kind {
	case KindStrong:
		el = element(atom.Strong)
	case KindEmphasis:
		el = element(atom.Em)
	case KindListItem:
		el = element(atom.Li)
	case KindList:
		el = element(atom.Ul)
	default:
		return &html.Node{Type: html.TextNode}
	}
	for _, c := range n.Children {
		el.AppendChild(c.htmlNode())
	}
	return el
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}
