package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataPipelineRejectsDuplicateConsecutiveSteps(t *testing.T) {
	_, err := NewDataPipeline("idx", "doc1", []string{"extract", "extract", "partition"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateConsecutiveStep)
}

func TestNewDataPipelineRejectsReservedTags(t *testing.T) {
	_, err := NewDataPipeline("idx", "doc1", []string{"extract"}, Tags{ReservedTagDocumentID: {"x"}})
	require.Error(t, err)
}

func TestAdvanceStepMovesBoundaryForward(t *testing.T) {
	p, err := NewDataPipeline("idx", "doc1", []string{"extract", "partition", "embed"}, nil)
	require.NoError(t, err)

	assert.False(t, p.Complete())
	assert.Equal(t, "extract", p.CurrentStep())

	require.NoError(t, p.AdvanceStep())
	assert.Equal(t, []string{"extract"}, p.CompletedSteps)
	assert.Equal(t, []string{"partition", "embed"}, p.RemainingSteps)

	require.NoError(t, p.AdvanceStep())
	require.NoError(t, p.AdvanceStep())
	assert.True(t, p.Complete())

	err = p.AdvanceStep()
	assert.ErrorIs(t, err, ErrPipelineCompleted)
}

func TestStepConservationInvariant(t *testing.T) {
	p, err := NewDataPipeline("idx", "doc1", []string{"a", "b", "c"}, nil)
	require.NoError(t, err)

	for !p.Complete() {
		combined := append(append([]string{}, p.CompletedSteps...), p.RemainingSteps...)
		assert.Equal(t, p.Steps, combined)
		require.NoError(t, p.AdvanceStep())
	}
	assert.Equal(t, p.Steps, p.CompletedSteps)
}

func TestRollbackStepReversesAdvance(t *testing.T) {
	p, err := NewDataPipeline("idx", "doc1", []string{"extract", "embed"}, nil)
	require.NoError(t, err)

	require.NoError(t, p.AdvanceStep())
	assert.Equal(t, "embed", p.CurrentStep())

	require.NoError(t, p.RollbackStep("extract"))
	assert.Equal(t, "extract", p.CurrentStep())
	assert.Empty(t, p.CompletedSteps)

	err = p.RollbackStep("embed")
	assert.Error(t, err)
}

func TestCapturePreviousExecutionFlattensOneLevelDeep(t *testing.T) {
	grandparent, err := NewDataPipeline("idx", "doc1", []string{"extract"}, nil)
	require.NoError(t, err)

	parent, err := NewDataPipeline("idx", "doc1", []string{"extract"}, nil)
	require.NoError(t, err)
	parent.CapturePreviousExecution(grandparent)
	require.Len(t, parent.PreviousExecutionsToPurge, 1)

	child, err := NewDataPipeline("idx", "doc1", []string{"extract"}, nil)
	require.NoError(t, err)
	child.CapturePreviousExecution(parent)

	require.Len(t, child.PreviousExecutionsToPurge, 2)
	for _, prev := range child.PreviousExecutionsToPurge {
		assert.Empty(t, prev.PreviousExecutionsToPurge)
	}
}

func TestGeneratedFileDescriptorIdempotencyGate(t *testing.T) {
	g := NewGeneratedFileDescriptor("a.txt.partition.0.txt", 10, "text/plain", "sha", "parent-1", ArtifactTextPartition)
	assert.False(t, g.Processed("embed"))
	g.MarkProcessed("embed")
	assert.True(t, g.Processed("embed"))
	assert.False(t, g.Processed("save_records"))
}

func TestBuildMemoryRecordIDIsDeterministic(t *testing.T) {
	id1 := BuildMemoryRecordID("doc-1", "partition-3")
	id2 := BuildMemoryRecordID("doc-1", "partition-3")
	assert.Equal(t, id1, id2)
	assert.Equal(t, "d=doc-1//p=partition-3", id1)
}
