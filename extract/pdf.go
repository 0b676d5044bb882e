package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kestrelai/memoria/mime"
)

// PDFExtractor extracts plain text per page, adapted from the teacher's
// PDFReader (rag/reader/pdf_reader.go), generalized from file-path input
// to in-memory content and always splitting by page so the section number
// spec.md §4.3 requires for multi-page formats is preserved.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) MimeTypes() []string {
	return []string{mime.TypePDF}
}

func (e *PDFExtractor) Extract(_ context.Context, content []byte, fileName string) ([]Section, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract: open pdf %s: %w", fileName, err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("extract: pdf %s has no pages", fileName)
	}

	sections := make([]Section, 0, numPages)
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Best-effort: skip pages the library can't decode rather than
			// failing the whole document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, Section{Number: pageNum, Text: text})
	}
	return sections, nil
}
