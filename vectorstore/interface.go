// Package vectorstore abstracts the embedding index the search client and
// save-records handler write to and read from.
package vectorstore

import (
	"context"

	"github.com/kestrelai/memoria/pipeline"
)

// Filter is an AND of exact-match constraints over tag key/value pairs,
// mirroring the EQ-only filtering the teacher's chromem store exposes
// (rag/store/chromem/store.go): "Chromem currently supports exact match
// filtering... Only EQ is directly supported by simple map[string]string
// where clause."
type Filter map[string]string

// SearchRequest queries an index for the TopK nearest neighbours of
// Embedding subject to Filter.
type SearchRequest struct {
	Embedding []float32
	TopK      int
	Filter    Filter
	MinScore  float64
}

// ScoredRecord pairs a MemoryRecord with its similarity score.
type ScoredRecord struct {
	Record pipeline.MemoryRecord
	Score  float64
}

// Store is the embedding index: one named collection ("index") per
// memoria index (spec.md §3 glossary: "Index").
type Store interface {
	// EnsureIndex creates the named index if it does not already exist.
	EnsureIndex(ctx context.Context, index string) error
	// DropIndex deletes the named index and everything in it.
	DropIndex(ctx context.Context, index string) error
	// ListIndexes returns every index known to the store.
	ListIndexes(ctx context.Context) ([]string, error)

	// Upsert writes or overwrites records by their deterministic ID
	// (spec.md Testable Property #7: re-embedding overwrites, not
	// duplicates).
	Upsert(ctx context.Context, index string, records []pipeline.MemoryRecord) error
	// Delete removes records by ID.
	Delete(ctx context.Context, index string, ids []string) error
	// DeleteByFilter removes every record matching filter, used when a
	// document is deleted (spec.md §4.1 StartDocumentDeletion); index
	// deletion uses DropIndex.
	DeleteByFilter(ctx context.Context, index string, filter Filter) error

	// Search returns the TopK nearest records to req.Embedding within
	// index, subject to req.Filter and req.MinScore.
	Search(ctx context.Context, index string, req SearchRequest) ([]ScoredRecord, error)
}
