package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/vectorstore"
	"github.com/kestrelai/memoria/vectorstore/chromem"
)

func seedDocRecord(t *testing.T, store vectorstore.Store, index, documentID string, vec []float32) {
	t.Helper()
	require.NoError(t, store.EnsureIndex(context.Background(), index))
	require.NoError(t, store.Upsert(context.Background(), index, []pipeline.MemoryRecord{{
		ID:     pipeline.BuildMemoryRecordID(documentID, documentID+"-p1"),
		Vector: vec,
		Tags:   pipeline.Tags{}.WithReserved(documentID, "file-"+documentID, documentID+"-p1", "text/plain"),
	}}))
}

func TestDeleteDocumentRemovesRecordsAndFiles(t *testing.T) {
	io, contentStore := newTestEnv(t)
	store, err := chromem.New("")
	require.NoError(t, err)
	ctx := context.Background()

	seedDocRecord(t, store, "idx", "doc1", []float32{1, 0, 0})
	seedDocRecord(t, store, "idx", "doc2", []float32{0, 1, 0})

	p := newPipelineWithFile(t, io, "doc.txt", "green is a great color")

	h := NewDeleteDocument(contentStore, []vectorstore.Store{store})
	deletion, err := pipeline.NewDataPipeline("idx", "doc1", []string{h.StepName()}, nil)
	require.NoError(t, err)
	_, err = h.Invoke(ctx, deletion)
	require.NoError(t, err)

	// Only doc2's record survives.
	results := searchAll(t, store, "idx", []float32{1, 0, 0})
	require.Len(t, results, 1)
	assert.Equal(t, []string{"doc2"}, results[0].Record.Tags[pipeline.ReservedTagDocumentID])

	exists, err := contentStore.FileExists(ctx, p.Index, p.DocumentID, "doc.txt")
	require.NoError(t, err)
	assert.False(t, exists, "the document directory is gone")
}

func TestDeleteDocumentSucceedsWhenNothingExists(t *testing.T) {
	_, contentStore := newTestEnv(t)
	store, err := chromem.New("")
	require.NoError(t, err)

	h := NewDeleteDocument(contentStore, []vectorstore.Store{store})
	p, err := pipeline.NewDataPipeline("idx", "never-uploaded", []string{h.StepName()}, nil)
	require.NoError(t, err)

	_, err = h.Invoke(context.Background(), p)
	assert.NoError(t, err)
}

func TestDeleteIndexDropsEverything(t *testing.T) {
	io, contentStore := newTestEnv(t)
	store, err := chromem.New("")
	require.NoError(t, err)
	ctx := context.Background()

	seedDocRecord(t, store, "idx", "doc1", []float32{1, 0, 0})
	newPipelineWithFile(t, io, "doc.txt", "green is a great color")

	h := NewDeleteIndex(contentStore, []vectorstore.Store{store})
	p, err := pipeline.NewDataPipeline("idx", "", []string{h.StepName()}, nil)
	require.NoError(t, err)
	_, err = h.Invoke(ctx, p)
	require.NoError(t, err)

	indexes, err := store.ListIndexes(ctx)
	require.NoError(t, err)
	assert.NotContains(t, indexes, "idx")

	exists, err := contentStore.FileExists(ctx, "idx", "doc1", "doc.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}
