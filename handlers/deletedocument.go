package handlers

import (
	"context"
	"fmt"

	"github.com/kestrelai/memoria/contentstore"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/vectorstore"
)

// DeleteDocument removes every record tagged with the pipeline's document
// id from every configured VectorStore, then removes the document's
// ContentStore directory (spec.md §4.8). It succeeds even if the
// document never existed.
type DeleteDocument struct {
	store  contentstore.ContentStore
	stores []vectorstore.Store
}

// NewDeleteDocument creates a DeleteDocument handler.
func NewDeleteDocument(store contentstore.ContentStore, stores []vectorstore.Store) *DeleteDocument {
	return &DeleteDocument{store: store, stores: stores}
}

func (h *DeleteDocument) StepName() string { return orchestrator.StepDeleteDocument }

func (h *DeleteDocument) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	filter := vectorstore.Filter{pipeline.ReservedTagDocumentID: p.DocumentID}
	for _, store := range h.stores {
		if err := store.DeleteByFilter(ctx, p.Index, filter); err != nil {
			return p, fmt.Errorf("delete-document: %w", err)
		}
	}
	if err := h.store.DeleteDocumentDirectory(ctx, p.Index, p.DocumentID); err != nil {
		return p, fmt.Errorf("delete-document: delete directory: %w", err)
	}
	return p, nil
}

var _ orchestrator.Handler = (*DeleteDocument)(nil)
