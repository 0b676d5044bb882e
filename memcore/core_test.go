package memcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/embedding"
	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/search"
	"github.com/kestrelai/memoria/vectorstore"
	"github.com/kestrelai/memoria/vectorstore/chromem"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	store, err := chromem.New("")
	require.NoError(t, err)

	c, err := NewInProcessForTest(t.TempDir(),
		WithVectorStores(store),
		WithEmbedder("mock", embedding.NewMockProvider([]float32{1, 0, 0})),
		WithGenerator(llm.NewMockTextGenerator("green")),
	)
	require.NoError(t, err)
	return c
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

// TestCoreIngestProducesFullArtifactChain is spec.md §8 scenario S3: after
// a complete ingestion, the status document records every derived artifact.
func TestCoreIngestProducesFullArtifactChain(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	content := "green is a great color for walls.\nblue suits the ceiling better.\n"
	_, err := c.Orchestrator.ImportDocument(ctx, "default", orchestrator.UploadRequest{
		DocumentID: "1",
		Files: []orchestrator.UploadFile{
			{Name: "doc.txt", Content: []byte(content)},
		},
	})
	require.NoError(t, err)

	persisted, err := c.Orchestrator.ReadPipelineStatus(ctx, "default", "1")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.True(t, persisted.Complete())
	assert.Empty(t, persisted.RemainingSteps)

	require.Len(t, persisted.Files, 1)
	assert.NotEmpty(t, persisted.Files[0].GeneratedFiles)

	extracted := persisted.GeneratedFilesByType(pipeline.ArtifactExtractedText)
	partitions := persisted.GeneratedFilesByType(pipeline.ArtifactTextPartition)
	summaries := persisted.GeneratedFilesByType(pipeline.ArtifactSummary)
	embeddings := persisted.GeneratedFilesByType(pipeline.ArtifactTextEmbeddingVector)

	assert.Len(t, extracted, 1)
	assert.GreaterOrEqual(t, len(partitions), 1)
	assert.Len(t, summaries, 1)
	// Every partition and every summary gets exactly one embedding.
	assert.Len(t, embeddings, len(partitions)+len(summaries))
}

// TestCoreReuploadConsolidatesRecords is spec.md §8 scenario S4: re-upload
// under the same (index, documentId) retires the first execution's records.
func TestCoreReuploadConsolidatesRecords(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	upload := func(content string) {
		_, err := c.Orchestrator.ImportDocument(ctx, "default", orchestrator.UploadRequest{
			DocumentID: "1",
			Files: []orchestrator.UploadFile{
				{Name: "doc.txt", Content: []byte(content)},
			},
		})
		require.NoError(t, err)
	}
	upload("red is a great color")
	upload("green is a great color")

	persisted, err := c.Orchestrator.ReadPipelineStatus(ctx, "default", "1")
	require.NoError(t, err)
	assert.Empty(t, persisted.PreviousExecutionsToPurge, "save-records clears the purge list")

	// The mock embedder gives every record the same vector, so a single
	// probe sees everything in the index.
	records, err := c.Config.VectorStores[0].Search(ctx, "default", vectorstore.SearchRequest{
		Embedding: []float32{1, 0, 0},
		TopK:      100,
	})
	require.NoError(t, err)
	expected := len(persisted.GeneratedFilesByType(pipeline.ArtifactTextEmbeddingVector))
	assert.Len(t, records, expected, "only the second execution's records remain")
}

// TestCoreReingestIdenticalContentKeepsRecordIDs covers spec.md §8
// properties 1 and 7: re-running the whole pipeline over byte-identical
// input yields the same record ids, overwritten in place.
func TestCoreReingestIdenticalContentKeepsRecordIDs(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	recordIDs := func() []string {
		records, err := c.Config.VectorStores[0].Search(ctx, "default", vectorstore.SearchRequest{
			Embedding: []float32{1, 0, 0},
			TopK:      100,
		})
		require.NoError(t, err)
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.Record.ID
		}
		return ids
	}

	upload := func() {
		_, err := c.Orchestrator.ImportDocument(ctx, "default", orchestrator.UploadRequest{
			DocumentID: "1",
			Files: []orchestrator.UploadFile{
				{Name: "doc.txt", Content: []byte("green is a great color")},
			},
		})
		require.NoError(t, err)
	}

	upload()
	first := recordIDs()
	require.NotEmpty(t, first)

	upload()
	assert.ElementsMatch(t, first, recordIDs())
}

// TestCoreDeleteDocumentRemovesAllTraces covers spec.md §8 property 8.
func TestCoreDeleteDocumentRemovesAllTraces(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	_, err := c.Orchestrator.ImportDocument(ctx, "default", orchestrator.UploadRequest{
		DocumentID: "1",
		Files: []orchestrator.UploadFile{
			{Name: "doc.txt", Content: []byte("green is a great color")},
		},
	})
	require.NoError(t, err)

	_, err = c.Orchestrator.StartDocumentDeletion(ctx, "default", "1")
	require.NoError(t, err)

	answer, err := c.Search.Ask(ctx, "default", "what color?", search.AskOptions{})
	require.NoError(t, err)
	assert.True(t, answer.NoResult)
	assert.Empty(t, answer.RelevantSources)

	ready, err := c.Orchestrator.IsDocumentReady(ctx, "default", "1")
	require.NoError(t, err)
	assert.False(t, ready, "a deletion pipeline carries no files, so the document reads as not ready")
}

func TestCoreIngestAndAskRoundTrip(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	p, err := c.Orchestrator.ImportDocument(ctx, "default", orchestrator.UploadRequest{
		DocumentID: "1",
		Files: []orchestrator.UploadFile{
			{Name: "doc.txt", Content: []byte("green is a great color")},
		},
	})
	require.NoError(t, err)
	assert.True(t, p.Complete())

	answer, err := c.Search.Ask(ctx, "default", "what color?", search.AskOptions{})
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "green")
}
