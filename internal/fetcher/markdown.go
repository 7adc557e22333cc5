package fetcher

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// excludedTags never contribute text.
const excludedTags = "script, style, nav, footer, header, aside, img, video, canvas, svg, form, iframe, button, input, noscript"

var (
	inlineSpace = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// renderer converts an HTML subtree to markdown. When base is set, link
// targets are resolved against it; otherwise they are kept as written.
type renderer struct {
	base *url.URL
	b    strings.Builder
}

// RenderMarkdown renders sel with excluded tags removed.
func RenderMarkdown(sel *goquery.Selection, base *url.URL) string {
	sel.Find(excludedTags).Remove()

	r := &renderer{base: base}
	for _, n := range sel.Nodes {
		r.node(n)
	}
	return normalize(r.b.String())
}

func (r *renderer) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.b.WriteString(inlineSpace.ReplaceAllString(n.Data, " "))
		return
	case html.ElementNode:
	case html.DocumentNode:
		r.children(n)
		return
	default:
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		r.b.WriteString("\n\n" + strings.Repeat("#", level) + " " + r.inline(n) + "\n\n")
	case "p", "div", "section", "article", "main", "table", "blockquote", "ul", "ol", "dl", "pre":
		r.b.WriteString("\n\n")
		r.children(n)
		r.b.WriteString("\n\n")
	case "tr", "dt", "dd":
		r.b.WriteString("\n")
		r.children(n)
	case "td", "th":
		r.b.WriteString(" ")
		r.children(n)
		r.b.WriteString(" ")
	case "li":
		r.b.WriteString("\n- " + r.inline(n))
	case "br":
		r.b.WriteString("\n")
	case "hr":
		r.b.WriteString("\n\n---\n\n")
	case "strong", "b":
		if text := r.inline(n); text != "" {
			r.b.WriteString("**" + text + "**")
		}
	case "a":
		r.link(n)
	default:
		r.children(n)
	}
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.node(c)
	}
}

// inline renders n's children on one line.
func (r *renderer) inline(n *html.Node) string {
	sub := &renderer{base: r.base}
	sub.children(n)
	return strings.TrimSpace(inlineSpace.ReplaceAllString(sub.b.String(), " "))
}

func (r *renderer) link(n *html.Node) {
	text := r.inline(n)
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" || text == "" {
		r.b.WriteString(text)
		return
	}
	if r.base != nil && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
		if ref, err := url.Parse(href); err == nil {
			href = r.base.ResolveReference(ref).String()
		}
	}
	r.b.WriteString("[" + text + "](" + href + ")")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
