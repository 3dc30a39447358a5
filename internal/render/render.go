package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/k3a/html2text"
)

const (
	FormatPDF  = "pdf"
	FormatHTML = "html"
)

// DefaultBrand heads every rendered document
const DefaultBrand = "ERADO EMAIL EXPORT"

// Renderer turns a record into a self-contained document
type Renderer interface {
	Render(rec extractor.EmailRecord, generatedAt time.Time) ([]byte, error)
	Extension() string
	ContentType() string
}

// Options shared by renderers
type Options struct {
	Brand    string
	Compress bool
}

// New returns the renderer for format
func New(format string, opts Options) (Renderer, error) {
	if opts.Brand == "" {
		opts.Brand = DefaultBrand
	}
	switch strings.ToLower(format) {
	case "", FormatPDF:
		return &PDF{opts: opts}, nil
	case FormatHTML:
		return NewHTML(opts)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// PlainBody converts an HTML body to readable text. Plain bodies pass through.
func PlainBody(body string) string {
	if !strings.Contains(body, "<") {
		return cleanupWhitespace(body)
	}
	return cleanupWhitespace(html2text.HTML2Text(body))
}

func timestamp(t time.Time) string {
	return t.Format("January 2, 2006 15:04:05 MST")
}

// cleanupWhitespace drops runs of more than two blank lines
func cleanupWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 2 {
				result = append(result, "")
			}
			continue
		}
		blankCount = 0
		result = append(result, strings.TrimRight(line, " \t"))
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}
