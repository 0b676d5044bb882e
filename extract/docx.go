package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kestrelai/memoria/mime"
)

// DocxExtractor extracts the text runs of word/document.xml from a .docx
// (which is a zip archive of XML parts), adapted from the teacher's
// DocxReader.extractDocumentText/parseDocumentXML (rag/reader/docx_reader.go)
// down to the single text-content concern the ingestion extract handler
// needs — no image extraction, no core-properties metadata, since nothing
// in a DataPipeline's extracted-text artifact models either.
type DocxExtractor struct{}

// NewDocxExtractor creates a DocxExtractor.
func NewDocxExtractor() *DocxExtractor {
	return &DocxExtractor{}
}

func (e *DocxExtractor) MimeTypes() []string {
	return []string{mime.TypeMSWord}
}

func (e *DocxExtractor) Extract(_ context.Context, content []byte, fileName string) ([]Section, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract: open docx %s: %w", fileName, err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract: open word/document.xml in %s: %w", fileName, err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("extract: read word/document.xml in %s: %w", fileName, err)
		}
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("extract: %s has no word/document.xml part", fileName)
	}

	text, err := paragraphsFromDocumentXML(docXML)
	if err != nil {
		return nil, fmt.Errorf("extract: parse %s: %w", fileName, err)
	}
	return []Section{{Number: 1, Text: text}}, nil
}

// docxRun is a run of text within a paragraph (<w:r><w:t>...</w:t></w:r>).
type docxRun struct {
	Text string `xml:"t"`
}

// docxParagraph is one paragraph (<w:p>), made of zero or more runs.
type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

// docxBody is the document body, a flat stream of paragraphs.
type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxDocument struct {
	Body docxBody `xml:"body"`
}

// paragraphsFromDocumentXML decodes word/document.xml's <w:p>/<w:r>/<w:t>
// structure into plain text, one line per paragraph. Word's run-splitting
// means a sentence can be spread across several <w:t> elements (e.g. due
// to spell-check markup); runs within a paragraph are concatenated with
// no separator, matching how Word itself reflows them on render.
func paragraphsFromDocumentXML(docXML []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", err
	}

	var lines []string
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			b.WriteString(r.Text)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n"), nil
}
