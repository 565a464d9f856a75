package fragment

import (
	"regexp"
	"strings"
)

const (
	boldMarker   = "**"
	italicMarker = '*'
	listPrefix   = "- "
)

// imageURL matches http(s) URLs that end in a common image extension.
var imageURL = regexp.MustCompile(`(?i)https?://[^\s<>"']+?\.(?:jpe?g|png|webp)\b`)

// token is either a run of raw text or an already-built node that later
// passes must treat as opaque.
type token struct {
	text string
	node *Node
}

// Format converts raw reply text into a Fragment. Rules run in a fixed
// order so later rules never re-match what earlier ones produced:
//
//  1. **bold** (shortest non-empty span)
//  2. *italic* (shortest non-empty span, bold spans are opaque)
//  3. lines starting with "- " become list items; when at least one exists
//     the whole fragment is wrapped in a single list
//  4. newlines between two non-list lines become line breaks
//  5. image URLs anywhere in the text become images
//
// Unmatched markers are kept as literal text. Format is pure and safe for
// concurrent use.
func Format(raw string) *Fragment {
	if raw == "" {
		return &Fragment{}
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var nodes []*Node
	hasList := false
	prevItem := false
	for i, line := range strings.Split(raw, "\n") {
		item := strings.HasPrefix(line, listPrefix)
		if i > 0 && !item && !prevItem {
			nodes = append(nodes, &Node{Kind: KindLineBreak})
		}
		if item {
			hasList = true
			nodes = append(nodes, &Node{
				Kind:     KindListItem,
				Children: inline(line[len(listPrefix):]),
			})
		} else {
			nodes = append(nodes, inline(line)...)
		}
		prevItem = item
	}

	if hasList {
		nodes = []*Node{{Kind: KindList, Children: nodes}}
	}
	return &Fragment{Nodes: embedImages(nodes)}
}

// Render is shorthand for Format(raw).HTML().
func Render(raw string) string {
	return Format(raw).HTML()
}

func inline(s string) []*Node {
	if s == "" {
		return nil
	}
	return emphasize(bold(s))
}

// bold splits s into text tokens and Strong nodes. A span opened by three
// markers ("***x***") keeps its inner marker so that it resolves as bold
// wrapping italic.
func bold(s string) []token {
	var toks []token
	pos := 0
	for {
		open := strings.Index(s[pos:], boldMarker)
		if open < 0 {
			break
		}
		open += pos
		start := open + len(boldMarker)
		if start >= len(s) {
			break
		}
		end := strings.Index(s[start+1:], boldMarker)
		if end < 0 {
			break
		}
		end += start + 1
		if s[start] == italicMarker && end+len(boldMarker) < len(s) && s[end+len(boldMarker)] == italicMarker {
			end++
		}

		toks = append(toks, token{text: s[pos:open]})
		toks = append(toks, token{node: &Node{
			Kind:     KindStrong,
			Children: emphasize([]token{{text: s[start:end]}}),
		}})
		pos = end + len(boldMarker)
	}
	return append(toks, token{text: s[pos:]})
}

type marker struct {
	tok, off int
}

// emphasize pairs single markers left to right across the token stream. A
// pair needs at least one byte or node between its two markers, so a run
// of markers only ever opens on its last one.
func emphasize(toks []token) []*Node {
	var marks []marker
	for i, t := range toks {
		if t.node != nil {
			continue
		}
		for off := 0; off < len(t.text); off++ {
			if t.text[off] == italicMarker {
				marks = append(marks, marker{tok: i, off: off})
			}
		}
	}

	opens := make(map[marker]bool)
	closes := make(map[marker]bool)
	pending := -1
	for j, m := range marks {
		if pending < 0 {
			pending = j
			continue
		}
		open := marks[pending]
		if open.tok == m.tok && m.off == open.off+1 {
			// Adjacent markers would form an empty span: the earlier one
			// stays literal and the later one may still open.
			pending = j
			continue
		}
		opens[open] = true
		closes[m] = true
		pending = -1
	}

	var out, em []*Node
	inEm := false
	emit := func(n *Node) {
		if inEm {
			em = append(em, n)
		} else {
			out = append(out, n)
		}
	}
	emitText := func(s string) {
		if s != "" {
			emit(&Node{Kind: KindText, Text: s})
		}
	}

	for i, t := range toks {
		if t.node != nil {
			emit(t.node)
			continue
		}
		last := 0
		for off := 0; off < len(t.text); off++ {
			m := marker{tok: i, off: off}
			switch {
			case opens[m]:
				emitText(t.text[last:off])
				inEm = true
				em = nil
				last = off + 1
			case closes[m]:
				emitText(t.text[last:off])
				out = append(out, &Node{Kind: KindEmphasis, Children: em})
				inEm = false
				em = nil
				last = off + 1
			}
		}
		emitText(t.text[last:])
	}
	return out
}

// embedImages replaces image URLs inside every Text node of the tree.
func embedImages(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind != KindText {
			n.Children = embedImages(n.Children)
			out = append(out, n)
			continue
		}

		locs := imageURL.FindAllStringIndex(n.Text, -1)
		if len(locs) == 0 {
			out = append(out, n)
			continue
		}
		last := 0
		for _, loc := range locs {
			if loc[0] > last {
				out = append(out, &Node{Kind: KindText, Text: n.Text[last:loc[0]]})
			}
			out = append(out, &Node{Kind: KindImage, Src: n.Text[loc[0]:loc[1]]})
			last = loc[1]
		}
		if last < len(n.Text) {
			out = append(out, &Node{Kind: KindText, Text: n.Text[last:]})
		}
	}
	return out
}
