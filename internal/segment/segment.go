// Package segment discovers the reducible text of a parsed HTML document.
// The walk is read-only: callers take the returned segments and mutate the
// tree through them afterwards, never by re-querying mid-run.
package segment

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/reduct/internal/page"
)

// MinWords is the smallest concatenated word count worth reducing. Shorter
// groups tend to produce nonsensical output.
const MinWords = 10

// Segment is a maximal group of text nodes sharing the nearest non-inline
// ancestor. It is the unit of reduction and restoration.
type Segment struct {
	// Container is the nearest block-level ancestor of every node in Nodes.
	Container *html.Node
	// Nodes holds the constituent text nodes in document order.
	Nodes []*html.Node
	// Text is the whitespace-collapsed concatenation of the nodes' content.
	Text string
}

// protectedTags have text content that must never be reduced.
var protectedTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"code":     {},
	"pre":      {},
}

// inlineTags do not establish a segment boundary; text split across them
// anchors to the same block-level container.
var inlineTags = map[string]struct{}{
	"a": {}, "abbr": {}, "b": {}, "bdi": {}, "bdo": {}, "cite": {},
	"del": {}, "em": {}, "i": {}, "ins": {}, "kbd": {}, "mark": {},
	"q": {}, "s": {}, "samp": {}, "small": {}, "span": {}, "strong": {},
	"sub": {}, "sup": {}, "time": {}, "u": {}, "var": {}, "wbr": {},
}

// Collect walks every descendant text node of root in document order and
// groups the eligible ones by their nearest block-level container. Groups
// whose combined text falls under MinWords are dropped.
func Collect(root *html.Node) []Segment {
	if root == nil {
		return nil
	}
	var segs []Segment
	index := make(map[*html.Node]int)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isProtected(n) {
			return
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			if c := containerOf(n, root); c != nil {
				i, ok := index[c]
				if !ok {
					i = len(segs)
					index[c] = i
					segs = append(segs, Segment{Container: c})
				}
				segs[i].Nodes = append(segs[i].Nodes, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	out := segs[:0]
	for _, s := range segs {
		var b strings.Builder
		for _, n := range s.Nodes {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		words := strings.Fields(b.String())
		if len(words) < MinWords {
			continue
		}
		s.Text = strings.Join(words, " ")
		out = append(out, s)
	}
	return out
}

// containerOf walks upward from the text node's parent to the nearest
// ancestor that is not an inline element. Climbing stops at root.
func containerOf(n *html.Node, root *html.Node) *html.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			return nil
		}
		if cur == root {
			return cur
		}
		if _, inline := inlineTags[strings.ToLower(cur.Data)]; !inline {
			return cur
		}
	}
	return nil
}

func isProtected(n *html.Node) bool {
	name := strings.ToLower(n.Data)
	if _, ok := protectedTags[name]; ok {
		return true
	}
	// Content that was inserted by a previous reduction, or deliberately
	// opted out, is excluded from discovery.
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, "class") && hasClass(attr.Val, page.FragmentClass) {
			return true
		}
	}
	return false
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
