package convert

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/fileconv/fileconv/pptx"
)

// TextExtractor converts a presentation to PDF by pulling the slide text out
// of the pptx container and laying it out onto one A4 page per slide. It has
// no external dependencies and is always available, at the cost of losing all
// images, charts and styling.
type TextExtractor struct{}

func (t *TextExtractor) Method() Method { return MethodTextExtract }

type slideSection struct {
	Title       string
	Paragraphs  []string
	Placeholder string
}

// slideSections maps parsed slides onto page content, substituting a visible
// placeholder for slides with no extractable text so the page count always
// matches the slide count.
func slideSections(pres *pptx.Presentation) []slideSection {
	sections := make([]slideSection, 0, len(pres.Slides))
	for i, slide := range pres.Slides {
		sec := slideSection{Title: fmt.Sprintf("Slide %d", i+1)}
		if len(slide.Paragraphs) == 0 {
			sec.Placeholder = "(no text content on this slide)"
		} else {
			sec.Paragraphs = slide.Paragraphs
		}
		sections = append(sections, sec)
	}
	return sections
}

func (t *TextExtractor) Convert(ctx context.Context, req Request) (*Result, error) {
	if f := rejectLegacyPresentation(req); f != nil {
		return nil, f
	}

	pres, err := pptx.Parse(req.Input)
	if err != nil {
		return nil, failf(UnsupportedInputFormat, "could not read presentation: %v", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(25.4, 25.4, 25.4)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, sec := range slideSections(pres) {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, tr(sec.Title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 11)
		if sec.Placeholder != "" {
			pdf.SetTextColor(128, 128, 128)
			pdf.MultiCell(0, 6, tr(sec.Placeholder), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
			continue
		}
		for _, para := range sec.Paragraphs {
			pdf.MultiCell(0, 6, tr(para), "", "L", false)
			pdf.Ln(2)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &Failure{
			Kind:    GenerationError,
			Message: "PDF generation failed",
			Detail:  err.Error(),
		}
	}
	return &Result{Output: buf.Bytes(), Filename: req.Stem() + ".pdf"}, nil
}
