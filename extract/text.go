package extract

import (
	"context"
	"unicode/utf8"

	"github.com/kestrelai/memoria/mime"
)

// PlainTextExtractor passes plain text, Markdown, and JSON content through
// unchanged as a single section, per spec.md §4.3: "Files whose MIME is
// already text/plain or text/plain-markdown pass through with the
// artifact recorded." JSON is treated the same way (its structure is left
// for the downstream partition/summarize steps to chunk as plain text,
// matching the teacher's JSONReader which also emits raw decoded text
// rather than a structured walk).
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates a PlainTextExtractor.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) MimeTypes() []string {
	return []string{mime.TypeText, mime.TypeMarkdown, mime.TypeJSON}
}

func (e *PlainTextExtractor) Extract(_ context.Context, content []byte, _ string) ([]Section, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = sanitizeUTF8(content)
	}
	return []Section{{Number: 1, Text: text}}, nil
}

// sanitizeUTF8 drops invalid byte sequences rather than failing the step,
// since a best-effort decode is preferable to discarding the whole file.
func sanitizeUTF8(b []byte) string {
	out := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError {
			out = append(out, r)
		}
		b = b[size:]
	}
	return string(out)
}
