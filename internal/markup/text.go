// Package markup converts generated report markup into plain text for analysis.
package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// maxDepth bounds the tree walk. Deeper documents go through StripTags instead.
const maxDepth = 64

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	multiSpacePattern = regexp.MustCompile(`[ \t]+`)
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "details": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "summary": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// ToText strips tags from markup and returns one line per block element, with blocks
// separated by blank lines. Inline elements stay within their block. Script and style
// content is dropped. Input that is not markup comes back trimmed.
func ToText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return StripTags(markup)
	}

	w := &textWalker{}
	if !w.walk(doc, 0) {
		return StripTags(markup)
	}
	w.flush()
	return strings.Join(w.blocks, "\n\n")
}

// StripTags is the regex fallback used when markup cannot be walked
func StripTags(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	text = multiSpacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

type textWalker struct {
	blocks  []string
	current strings.Builder
}

// walk reports false when the tree is nested deeper than maxDepth
func (w *textWalker) walk(n *html.Node, depth int) bool {
	if depth > maxDepth {
		return false
	}

	switch n.Type {
	case html.TextNode:
		w.current.WriteString(n.Data)
		return true
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return true
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		w.flush()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !w.walk(c, depth+1) {
			return false
		}
	}
	if block {
		w.flush()
	}
	return true
}

func (w *textWalker) flush() {
	text := strings.Join(strings.Fields(w.current.String()), " ")
	w.current.Reset()
	if text != "" {
		w.blocks = append(w.blocks, text)
	}
}
