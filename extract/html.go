package extract

import (
	"context"
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/kestrelai/memoria/mime"
)

// HTMLExtractor converts HTML to plain text via a Markdown conversion
// pass, replacing the teacher's regexp-based HTMLReader.extractText
// (rag/reader/html_reader.go) with a maintained converter from the wider
// example corpus (intelligencedev-manifold) while keeping the same "strip
// markup down to readable text" contract the handler needs.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (e *HTMLExtractor) MimeTypes() []string {
	return []string{mime.TypeHTML}
}

func (e *HTMLExtractor) Extract(_ context.Context, content []byte, fileName string) ([]Section, error) {
	text, err := htmltomarkdown.ConvertString(string(content))
	if err != nil {
		return nil, fmt.Errorf("extract: convert %s to markdown: %w", fileName, err)
	}
	return []Section{{Number: 1, Text: text}}, nil
}
