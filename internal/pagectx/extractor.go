// Package pagectx derives the text context sent with widget requests.
package pagectx

import "unicode/utf8"

// MinActionContentLength is the shortest content a translate or personalize
// action accepts, in characters.
const MinActionContentLength = 10

// Page is the host page as seen by the widget.
type Page interface {
	// Selection returns the active text selection, or "".
	Selection() string
	// MainText returns the rendered text of the primary content region, or "".
	MainText() string
}

// Extractor resolves request context from a Page.
type Extractor struct {
	page Page
}

// NewExtractor creates an extractor reading from page.
func NewExtractor(page Page) *Extractor {
	return &Extractor{page: page}
}

// CurrentSelection returns the active text selection, or "" if none.
func (e *Extractor) CurrentSelection() string {
	if e.page == nil {
		return ""
	}
	return e.page.Selection()
}

// PageContent returns the primary content region's text, or "" if unavailable.
func (e *Extractor) PageContent() string {
	if e.page == nil {
		return ""
	}
	return e.page.MainText()
}

// ResolveActionContent returns the selection if non-empty, else the page content.
func (e *Extractor) ResolveActionContent() string {
	if sel := e.CurrentSelection(); sel != "" {
		return sel
	}
	return e.PageContent()
}

// LongEnough reports whether content satisfies MinActionContentLength.
func LongEnough(content string) bool {
	return utf8.RuneCountInString(content) >= MinActionContentLength
}
