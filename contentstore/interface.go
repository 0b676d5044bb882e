// Package contentstore provides blob storage scoped by (index, documentId,
// fileName), grounded on the teacher's storage/kvstore file-backed store:
// same directory-scoped, whole-file-write persistence model, generalized
// from a single JSON blob to arbitrary named files per document.
package contentstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested index, document, or file does
// not exist. Orchestrator.ReadPipelineStatus treats it as an absent
// result rather than an error (spec.md §4.1).
var ErrNotFound = errors.New("contentstore: not found")

// ContentStore is blob storage scoped by (index, documentId, fileName).
// Concurrent readers are allowed; writers are last-writer-wins at the
// file level (spec.md §5).
type ContentStore interface {
	// CreateIndexDirectory ensures the index's directory exists.
	CreateIndexDirectory(ctx context.Context, index string) error
	// DeleteIndexDirectory removes the index directory and everything
	// under it. Succeeds even if the index does not exist.
	DeleteIndexDirectory(ctx context.Context, index string) error

	// CreateDocumentDirectory ensures the document's directory exists.
	CreateDocumentDirectory(ctx context.Context, index, documentID string) error
	// DeleteDocumentDirectory removes the document directory and
	// everything under it. Succeeds even if the document does not exist.
	DeleteDocumentDirectory(ctx context.Context, index, documentID string) error

	// WriteFile writes fileName under (index, documentID), creating
	// parent directories as needed.
	WriteFile(ctx context.Context, index, documentID, fileName string, content []byte) error
	// ReadFile reads fileName under (index, documentID). Returns
	// ErrNotFound if it does not exist.
	ReadFile(ctx context.Context, index, documentID, fileName string) ([]byte, error)
	// FileExists reports whether fileName exists under (index, documentID).
	FileExists(ctx context.Context, index, documentID, fileName string) (bool, error)

	// ListFileNames lists every file name under (index, documentID).
	ListFileNames(ctx context.Context, index, documentID string) ([]string, error)
}
