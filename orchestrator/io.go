package orchestrator

import (
	"context"

	"github.com/kestrelai/memoria/contentstore"
	"github.com/kestrelai/memoria/pipeline"
)

// IO is the scoped ContentStore access handed to handlers, per spec.md
// §4.1's "ReadFile/WriteFile/ReadTextFile/WriteTextFile (pipeline, name)
// — scoped helpers routing to ContentStore under (index, documentId)".
// Handlers read/write only through IO rather than holding a ContentStore
// reference directly, so every handler's file access is visibly scoped to
// its pipeline.
type IO struct {
	store contentstore.ContentStore
}

// ReadFile reads name from p's (index, documentId) scope.
func (io IO) ReadFile(ctx context.Context, p *pipeline.DataPipeline, name string) ([]byte, error) {
	return io.store.ReadFile(ctx, p.Index, p.DocumentID, name)
}

// WriteFile writes name in p's (index, documentId) scope.
func (io IO) WriteFile(ctx context.Context, p *pipeline.DataPipeline, name string, content []byte) error {
	return io.store.WriteFile(ctx, p.Index, p.DocumentID, name, content)
}

// ReadTextFile reads name and decodes it as UTF-8 text.
func (io IO) ReadTextFile(ctx context.Context, p *pipeline.DataPipeline, name string) (string, error) {
	b, err := io.ReadFile(ctx, p, name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteTextFile encodes text as UTF-8 and writes it as name.
func (io IO) WriteTextFile(ctx context.Context, p *pipeline.DataPipeline, name, text string) error {
	return io.WriteFile(ctx, p, name, []byte(text))
}

// FileExists reports whether name exists in p's scope.
func (io IO) FileExists(ctx context.Context, p *pipeline.DataPipeline, name string) (bool, error) {
	return io.store.FileExists(ctx, p.Index, p.DocumentID, name)
}
