// Package richtext sanitizes researcher-authored HTML and renders it for
// terminal preview.
package richtext

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy builds the allow-list once; a built policy is safe for
// concurrent use.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(
			"p", "br", "hr", "div", "span",
			"b", "strong", "i", "em", "u", "s", "sub", "sup", "code", "pre",
			"ul", "ol", "li", "blockquote",
			"h1", "h2", "h3", "h4", "h5", "h6",
			"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
		)
		p.AllowAttrs("href", "title").OnElements("a")
		p.AllowURLSchemes("http", "https", "mailto")
		p.RequireParseableURLs(true)
		p.AllowAttrs("colspan", "rowspan").Matching(regexp.MustCompile(`^[0-9]{1,2}$`)).OnElements("td", "th")
		// Script, style, iframe and object content is skipped by default.
		p.SkipElementsContent("svg", "math", "template", "textarea", "select", "embed")
		policy = p
	})
	return policy
}

// Sanitize returns html reduced to a small set of formatting elements.
// Scripts, styles and embedded frames are removed with their content; event
// handlers, inline styles and unknown attributes are removed; links keep
// only http, https and mailto targets and open without a referrer. The
// output is always well formed.
func Sanitize(input string) string {
	clean := getPolicy().Sanitize(input)

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(clean), body)
	if err != nil {
		// The parser only fails on reader errors.
		return html.EscapeString(clean)
	}

	var b strings.Builder
	for _, n := range nodes {
		protectLinks(n)
		if err := html.Render(&b, n); err != nil {
			return html.EscapeString(clean)
		}
	}
	return b.String()
}

// protectLinks sets rel="noopener noreferrer" on every link with a target.
func protectLinks(n *html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		attrs := n.Attr[:0]
		hasHref := false
		for _, a := range n.Attr {
			if a.Key != "rel" {
				attrs = append(attrs, a)
			}
			hasHref = hasHref || a.Key == "href"
		}
		if hasHref {
			attrs = append(attrs, html.Attribute{Key: "rel", Val: "noopener noreferrer"})
		}
		n.Attr = attrs
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		protectLinks(c)
	}
}

// Markdown sanitizes input and converts it to Markdown.
func Markdown(input string) (string, error) {
	out, err := md.ConvertString(Sanitize(input))
	if err != nil {
		return "", fmt.Errorf("converting to markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}
