package page

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// FragmentClass marks containers holding reduced replacement content. Every
// inserted fragment carries it so a later restore can find and remove them
// all without tracking node handles across the run.
const FragmentClass = "reduct-fragment"

// Page wraps one parsed HTML document. The node tree is shared with the
// goquery document, so direct *html.Node mutation and selector queries see
// the same state.
type Page struct {
	doc  *goquery.Document
	root *html.Node
}

// Load parses a complete HTML document from r.
func Load(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("parse page: empty document")
	}
	return &Page{doc: doc, root: doc.Nodes[0]}, nil
}

// LoadString parses a document held in memory.
func LoadString(s string) (*Page, error) {
	return Load(strings.NewReader(s))
}

// Body returns the document body, or the document root when the input had
// no body element.
func (p *Page) Body() *html.Node {
	if sel := p.doc.Find("body"); len(sel.Nodes) > 0 {
		return sel.Nodes[0]
	}
	return p.root
}

// HTML serializes the whole document.
func (p *Page) HTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, p.root); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return b.String(), nil
}

// RemoveFragments deletes every inserted-fragment container from the
// document and reports how many were removed.
func (p *Page) RemoveFragments() int {
	sel := p.doc.Find("." + FragmentClass)
	n := sel.Length()
	sel.Remove()
	return n
}

// FragmentCount reports how many inserted-fragment containers are present.
func (p *Page) FragmentCount() int {
	return p.doc.Find("." + FragmentClass).Length()
}

// Attached reports whether n is still reachable from the document root.
// Restoration only writes back into nodes that survived whatever structural
// changes happened around them.
func (p *Page) Attached(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == p.root {
			return true
		}
	}
	return false
}
