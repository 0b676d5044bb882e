package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/contentstore"
	"github.com/kestrelai/memoria/pipeline"
)

// stubHandler records invocations and optionally fails or inspects the
// pipeline mid-run.
type stubHandler struct {
	step     string
	invoked  int
	err      error
	onInvoke func(p *pipeline.DataPipeline)
}

func (h *stubHandler) StepName() string { return h.step }

func (h *stubHandler) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	h.invoked++
	if h.onInvoke != nil {
		h.onInvoke(p)
	}
	return p, h.err
}

type noopRunner struct{}

func (noopRunner) Start(context.Context, *pipeline.DataPipeline) error { return nil }

func noopFactory(*Orchestrator) StepRunner { return noopRunner{} }

func newTestOrchestrator(t *testing.T, makeRunner RunnerFactory) *Orchestrator {
	t.Helper()
	store, err := contentstore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return New(store, nil, makeRunner)
}

func uploadOneFile(documentID string, steps ...string) UploadRequest {
	return UploadRequest{
		DocumentID: documentID,
		Steps:      steps,
		Files:      []UploadFile{{Name: "doc.txt", Content: []byte("hello world")}},
	}
}

func TestImportDocumentRunsPlanInProcess(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	var order []string
	a := &stubHandler{step: "a", onInvoke: func(*pipeline.DataPipeline) { order = append(order, "a") }}
	b := &stubHandler{step: "b", onInvoke: func(*pipeline.DataPipeline) { order = append(order, "b") }}
	o.AttachHandler(a)
	o.AttachHandler(b)

	p, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a", "b"))
	require.NoError(t, err)
	assert.True(t, p.Complete())
	assert.Equal(t, []string{"a", "b"}, order)

	persisted, err := o.ReadPipelineStatus(context.Background(), "idx", "doc1")
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.True(t, persisted.Complete())
	assert.Equal(t, []string{"a", "b"}, persisted.CompletedSteps)
	require.Len(t, persisted.Files, 1)
	assert.Equal(t, "doc.txt", persisted.Files[0].Name)
	assert.Equal(t, "text/plain", persisted.Files[0].MimeType)
	assert.Equal(t, int64(len("hello world")), persisted.Files[0].Size)
	assert.NotEmpty(t, persisted.Files[0].ContentSHA256)
}

func TestImportDocumentRequiresFiles(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	_, err := o.ImportDocument(context.Background(), "idx", UploadRequest{DocumentID: "doc1"})
	assert.Error(t, err)
}

func TestImportDocumentWritesSourceBytesBeforeStatus(t *testing.T) {
	o := newTestOrchestrator(t, noopFactory)
	_, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)

	// Every file the persisted status points at must already exist.
	persisted, err := o.ReadPipelineStatus(context.Background(), "idx", "doc1")
	require.NoError(t, err)
	for _, f := range persisted.Files {
		exists, err := o.IO().FileExists(context.Background(), persisted, f.Name)
		require.NoError(t, err)
		assert.True(t, exists, f.Name)
	}
}

func TestStepFailureLeavesStatusAtFailedStep(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	stepErr := errors.New("transient provider failure")
	o.AttachHandler(&stubHandler{step: "a"})
	o.AttachHandler(&stubHandler{step: "b", err: stepErr})

	_, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a", "b"))
	require.ErrorIs(t, err, stepErr)

	persisted, err := o.ReadPipelineStatus(context.Background(), "idx", "doc1")
	require.NoError(t, err)
	assert.Equal(t, "b", persisted.CurrentStep())
	assert.Equal(t, []string{"a"}, persisted.CompletedSteps)
}

func TestPersistedSnapshotsConserveSteps(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	checkSnapshot := func(*pipeline.DataPipeline) {
		persisted, err := o.ReadPipelineStatus(context.Background(), "idx", "doc1")
		require.NoError(t, err)
		require.NotNil(t, persisted)
		combined := append(append([]string{}, persisted.CompletedSteps...), persisted.RemainingSteps...)
		assert.Equal(t, persisted.Steps, combined)
	}
	o.AttachHandler(&stubHandler{step: "a", onInvoke: checkSnapshot})
	o.AttachHandler(&stubHandler{step: "b", onInvoke: checkSnapshot})
	o.AttachHandler(&stubHandler{step: "c", onInvoke: checkSnapshot})

	_, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a", "b", "c"))
	require.NoError(t, err)
	checkSnapshot(nil)
}

func TestImportDocumentCapturesPreviousExecution(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	var observed []*pipeline.DataPipeline
	o.AttachHandler(&stubHandler{step: "a", onInvoke: func(p *pipeline.DataPipeline) {
		observed = append(observed, p)
	}})

	first, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)
	require.Empty(t, first.PreviousExecutionsToPurge)

	second, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)
	require.NotEqual(t, first.ExecutionID, second.ExecutionID)

	require.Len(t, observed, 2)
	require.Len(t, observed[1].PreviousExecutionsToPurge, 1)
	assert.Equal(t, first.ExecutionID, observed[1].PreviousExecutionsToPurge[0].ExecutionID)
}

func TestIsDocumentReady(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	o.AttachHandler(&stubHandler{step: "a"})

	ready, err := o.IsDocumentReady(context.Background(), "idx", "doc1")
	require.NoError(t, err)
	assert.False(t, ready)

	_, err = o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)

	ready, err = o.IsDocumentReady(context.Background(), "idx", "doc1")
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestReadPipelineStatusAbsentReturnsNil(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	p, err := o.ReadPipelineStatus(context.Background(), "idx", "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRunStepPanicsOnMissingHandler(t *testing.T) {
	o := newTestOrchestrator(t, noopFactory)
	p, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "unregistered"))
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = o.RunStep(context.Background(), p)
	})
}

func TestRunStepOnCompletedPipelineReturnsError(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	o.AttachHandler(&stubHandler{step: "a"})
	p, err := o.ImportDocument(context.Background(), "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)
	require.True(t, p.Complete())

	_, err = o.RunStep(context.Background(), p)
	assert.ErrorIs(t, err, pipeline.ErrPipelineCompleted)
}

func TestStartDocumentDeletionBuildsSingleStepPlan(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	del := &stubHandler{step: StepDeleteDocument}
	o.AttachHandler(del)

	p, err := o.StartDocumentDeletion(context.Background(), "idx", "doc1")
	require.NoError(t, err)
	assert.Equal(t, []string{StepDeleteDocument}, p.Steps)
	assert.True(t, p.Complete())
	assert.Equal(t, 1, del.invoked)
}

func TestStartIndexDeletionBuildsSingleStepPlan(t *testing.T) {
	o := newTestOrchestrator(t, InProcess())
	del := &stubHandler{step: StepDeleteIndex}
	o.AttachHandler(del)

	p, err := o.StartIndexDeletion(context.Background(), "idx")
	require.NoError(t, err)
	assert.Equal(t, []string{StepDeleteIndex}, p.Steps)
	assert.True(t, p.Complete())
	assert.Equal(t, 1, del.invoked)
}
