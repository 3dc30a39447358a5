package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/edu-moreno89/erado-export/internal/extractor"
	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin = 20.0
	pdfFont   = "Helvetica"
)

// PDF renders a paginated A4 document
type PDF struct {
	opts Options
}

func (p *PDF) Extension() string   { return FormatPDF }
func (p *PDF) ContentType() string { return "application/pdf" }

// Render lays out header, metadata, body and attachment list. Output is
// byte-identical for equal inputs.
func (p *PDF) Render(rec extractor.EmailRecord, generatedAt time.Time) ([]byte, error) {
	rec = rec.Normalize()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(p.opts.Compress)
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(rec.Subject, true)
	pdf.SetCreator(p.opts.Brand, true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()
	stamp := timestamp(generatedAt)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "", 8)
		pdf.SetTextColor(153, 153, 153)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Exported by %s on %s", p.opts.Brand, stamp)), "", 0, "L", false, 0, "")
		pdf.SetX(pdfMargin)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	text := func(s string, size float64, style string, r, g, b int) {
		pdf.SetFont(pdfFont, style, size)
		pdf.SetTextColor(r, g, b)
		pdf.MultiCell(0, size*0.5, tr(s), "", "L", false)
	}
	rule := func() {
		pdf.Ln(2)
		y := pdf.GetY()
		pdf.SetDrawColor(102, 126, 234)
		pdf.SetLineWidth(0.5)
		pdf.Line(pdfMargin, y, pageWidth-pdfMargin, y)
		pdf.Ln(4)
	}
	section := func(title string) {
		pdf.Ln(4)
		text(title, 13, "B", 51, 51, 51)
		rule()
	}
	field := func(label, value string) {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.SetTextColor(85, 85, 85)
		pdf.CellFormat(22, 5, tr(label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 10)
		pdf.SetTextColor(51, 51, 51)
		pdf.MultiCell(0, 5, tr(value), "", "L", false)
		pdf.Ln(1)
	}

	pdf.AddPage()

	text(p.opts.Brand, 18, "B", 102, 126, 234)
	pdf.Ln(1)
	text("Generated on "+stamp, 10, "", 102, 102, 102)
	rule()

	section("EMAIL INFORMATION")
	field("Subject", rec.Subject)
	field("From", rec.Sender)
	field("Date", rec.Date)
	if rec.SourceURL != "" {
		field("URL", rec.SourceURL)
	}

	section("EMAIL CONTENT")
	text(PlainBody(rec.Body), 10, "", 51, 51, 51)

	if len(rec.Attachments) > 0 {
		section(fmt.Sprintf("ATTACHMENTS (%d)", len(rec.Attachments)))
		for _, a := range rec.Attachments {
			text(fmt.Sprintf("- %s (%s, %s)", a.Name, a.Size, a.MimeType), 10, "", 51, 51, 51)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
