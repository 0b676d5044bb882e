package handlers

import (
	"context"
	"fmt"

	"github.com/kestrelai/memoria/contentstore"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/vectorstore"
)

// DeleteIndex drops an entire index from every configured VectorStore,
// then removes its ContentStore directory (spec.md §4.9).
type DeleteIndex struct {
	store  contentstore.ContentStore
	stores []vectorstore.Store
}

// NewDeleteIndex creates a DeleteIndex handler.
func NewDeleteIndex(store contentstore.ContentStore, stores []vectorstore.Store) *DeleteIndex {
	return &DeleteIndex{store: store, stores: stores}
}

func (h *DeleteIndex) StepName() string { return orchestrator.StepDeleteIndex }

func (h *DeleteIndex) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	for _, store := range h.stores {
		if err := store.DropIndex(ctx, p.Index); err != nil {
			return p, fmt.Errorf("delete-index: %w", err)
		}
	}
	if err := h.store.DeleteIndexDirectory(ctx, p.Index); err != nil {
		return p, fmt.Errorf("delete-index: delete directory: %w", err)
	}
	return p, nil
}

var _ orchestrator.Handler = (*DeleteIndex)(nil)
