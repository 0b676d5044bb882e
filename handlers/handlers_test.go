package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/contentstore"
	"github.com/kestrelai/memoria/mime"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
)

// newTestEnv builds a disk-backed orchestrator.IO over a temp directory,
// plus the underlying store for handlers that take it directly.
func newTestEnv(t *testing.T) (orchestrator.IO, contentstore.ContentStore) {
	t.Helper()
	store, err := contentstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	o := orchestrator.New(store, nil, orchestrator.InProcess())
	return o.IO(), store
}

// newPipelineWithFile creates a pipeline for (idx, doc1) holding one
// uploaded source file whose bytes are already in the content store, the
// state every handler sees after upload.
func newPipelineWithFile(t *testing.T, io orchestrator.IO, name, content string) *pipeline.DataPipeline {
	t.Helper()
	p, err := pipeline.NewDataPipeline("idx", "doc1", orchestrator.DefaultSteps, nil)
	require.NoError(t, err)
	require.NoError(t, io.WriteTextFile(context.Background(), p, name, content))

	sum := sha256.Sum256([]byte(content))
	p.AddFile(pipeline.NewFileDescriptor(name, int64(len(content)), mime.DetectFromFileName(name), hex.EncodeToString(sum[:])))
	return p
}

// addGeneratedText writes content under name and records it on file as a
// generated artifact of the given type, as an upstream handler would.
func addGeneratedText(t *testing.T, io orchestrator.IO, p *pipeline.DataPipeline, file *pipeline.FileDescriptor, name, content string, artifactType pipeline.ArtifactType) *pipeline.GeneratedFileDescriptor {
	t.Helper()
	require.NoError(t, io.WriteTextFile(context.Background(), p, name, content))
	g := pipeline.NewGeneratedFileDescriptor(name, int64(len(content)), mime.TypeText, "", file.ID, artifactType)
	file.GeneratedFiles[name] = g
	return g
}
