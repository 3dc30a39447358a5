package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFiles embed.FS

// HTML renders a printable standalone page
type HTML struct {
	opts      Options
	templates *template.Template
	policy    *bluemonday.Policy
}

// NewHTML parses the embedded templates
func NewHTML(opts Options) (*HTML, error) {
	tmpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if opts.Brand == "" {
		opts.Brand = DefaultBrand
	}
	return &HTML{opts: opts, templates: tmpl, policy: bluemonday.UGCPolicy()}, nil
}

func (h *HTML) Extension() string   { return FormatHTML }
func (h *HTML) ContentType() string { return "text/html; charset=utf-8" }

// Render executes email.html. Message markup is sanitized before it is
// embedded.
func (h *HTML) Render(rec extractor.EmailRecord, generatedAt time.Time) ([]byte, error) {
	rec = rec.Normalize()

	data := map[string]interface{}{
		"Brand":       h.opts.Brand,
		"Generated":   timestamp(generatedAt),
		"Email":       rec,
		"Body":        h.body(rec.Body),
		"Attachments": rec.Attachments,
	}

	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, "email.html", data); err != nil {
		return nil, fmt.Errorf("template error: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *HTML) body(body string) template.HTML {
	if strings.Contains(body, "<") {
		return template.HTML(h.policy.Sanitize(body))
	}
	escaped := template.HTMLEscapeString(body)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
}
