// Package embedding adapts text into vectors for storage and search,
// narrowed from the teacher's multi-provider EmbeddingModel family
// (embedding/interface.go) down to the single Provider contract the
// ingestion and search pipelines actually drive: single and batch text
// embedding, in float32 to match vectorstore.Store and pipeline.MemoryRecord
// directly. Multi-modal and sparse/BM25 embeddings are out of scope (no
// handler or SearchClient operation produces or consumes them).
package embedding

import "context"

// Provider generates embedding vectors for text.
type Provider interface {
	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds multiple texts. callback, if non-nil, reports
	// progress as each text completes.
	EmbedBatch(ctx context.Context, texts []string, callback ProgressCallback) ([][]float32, error)
	// Info returns metadata about the provider's model.
	Info() Info
}

// ProgressCallback reports progress during a batch embedding call.
type ProgressCallback func(current, total int)
