package pagectx

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]+`)
)

// Document is a Page fed by the browser: it keeps the latest selection and
// the text of the latest page snapshot.
type Document struct {
	mu        sync.RWMutex
	selection string
	mainText  string
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{}
}

// SetSelection records the active selection.
func (d *Document) SetSelection(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection = text
}

// SetHTML replaces the page snapshot with the given markup.
// Only the first <main> element contributes text.
func (d *Document) SetHTML(markup string) error {
	text, err := MainRegionText(markup)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mainText = text
	return nil
}

// Selection returns the active selection.
func (d *Document) Selection() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selection
}

// MainText returns the primary content region's text.
func (d *Document) MainText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mainText
}

// MainRegionText parses markup and returns the rendered text of its first
// <main> element, or "" when there is none.
func MainRegionText(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	region := findElement(doc, atom.Main)
	if region == nil {
		return "", nil
	}

	var sb strings.Builder
	extractText(region, &sb, 0)
	return cleanText(sb.String()), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 200 {
		return
	}

	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg, atom.Iframe:
			return
		case atom.Br:
			sb.WriteString("\n")
			return
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.DataAtom)
	if block {
		sb.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}
	if block {
		sb.WriteString("\n")
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Nav,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Li, atom.Pre, atom.Blockquote, atom.Table, atom.Tr:
		return true
	}
	return false
}

func cleanText(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
