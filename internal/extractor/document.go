package extractor

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed page snapshot together with the URL it was taken from
type Document struct {
	doc       *goquery.Document
	SourceURL string
}

// NewDocument parses an HTML snapshot
func NewDocument(r io.Reader, sourceURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{doc: doc, SourceURL: sourceURL}, nil
}

// NewDocumentFromString parses an HTML snapshot held in memory
func NewDocumentFromString(html, sourceURL string) (*Document, error) {
	return NewDocument(strings.NewReader(html), sourceURL)
}

// Root returns the selection every lookup starts from
func (d *Document) Root() *goquery.Selection {
	return d.doc.Selection
}

// visibleText returns the text of s without script and style content
func visibleText(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return clone.Text()
}

// collapse folds all whitespace runs into single spaces
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
