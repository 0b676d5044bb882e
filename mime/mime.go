// Package mime classifies an uploaded file name into the MIME type the
// extract handler dispatches on, per spec.md §6's minimum MIME map. It is
// an [EXPANSION]: the teacher has no file-name classification layer of its
// own, so this is built fresh in the teacher's small-interface,
// table-driven style: one extension-to-MIME lookup table.
package mime

import (
	"path/filepath"
	"strings"
)

// Well-known MIME type strings used throughout memoria. memoria uses the
// non-standard "text/plain-markdown" for Markdown source, per spec.md §6,
// to distinguish it from plain text at the partition step (Markdown gets a
// header/code-block-aware splitter).
const (
	TypeText      = "text/plain"
	TypeMarkdown  = "text/plain-markdown"
	TypeJSON      = "application/json"
	TypePDF       = "application/pdf"
	TypeMSWord    = "application/msword"
	TypeHTML      = "text/html"
	TypeImage     = "image/*"
	TypeEmbedding = "float[]"
)

// extensionMap is the minimum MIME map required by spec.md §6.
var extensionMap = map[string]string{
	".txt":          TypeText,
	".md":           TypeMarkdown,
	".markdown":     TypeMarkdown,
	".json":         TypeJSON,
	".pdf":          TypePDF,
	".doc":          TypeMSWord,
	".docx":         TypeMSWord,
	".html":         TypeHTML,
	".htm":          TypeHTML,
	".jpg":          TypeImage,
	".jpeg":         TypeImage,
	".png":          TypeImage,
	".tiff":         TypeImage,
	".bmp":          TypeImage,
	".gif":          TypeImage,
	".text_embedding": TypeEmbedding,
}

// DetectFromFileName returns the MIME type for fileName based on its
// extension, or "" if the extension is not recognized.
func DetectFromFileName(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return extensionMap[ext]
}

// IsPlainText reports whether mimeType is already extracted text that an
// extract handler should pass through unchanged (spec.md §4.3: "Files
// whose MIME is already text/plain or text/plain-markdown pass through").
func IsPlainText(mimeType string) bool {
	return mimeType == TypeText || mimeType == TypeMarkdown
}

// IsImage reports whether mimeType is one of the optional-OCR image types.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
