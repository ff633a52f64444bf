// Package sanitize reduces untrusted, model-generated HTML to a fixed
// allow-listed subset that is safe to splice into a live page.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// AllowedTags is the exhaustive set of element names that may survive
// sanitization. Anything else is unwrapped: the element is dropped while its
// children are kept at the same position. Script and style bodies are
// discarded entirely rather than unwrapped.
var AllowedTags = []string{
	"p",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li",
	"blockquote", "hr",
	"strong", "em", "b", "i",
	"br", "mark", "s", "del", "ins", "sub", "sup",
	"code", "pre",
	"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
	"abbr",
	"details", "summary",
}

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	// Elements only, no attribute rules: every attribute on every surviving
	// element is stripped, which removes event handlers and URL-bearing
	// attributes in one stroke.
	p.AllowElements(AllowedTags...)
	return p
}

// Clean returns a safe rendition of the input HTML. It never fails:
// malformed or adversarial input degrades to escaped text or an empty
// string, both of which are valid results.
func Clean(input string) string {
	return strings.TrimSpace(policy.Sanitize(input))
}
