package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/queue"
	"github.com/kestrelai/memoria/queue/memqueue"
)

// recordedDelivery builds a Delivery whose ack/nack outcomes land in the
// returned flags, for driving queuedRunner.deliver directly.
func recordedDelivery(index, documentID, executionID string) (queue.Delivery, *bool, *bool) {
	acked := new(bool)
	nacked := new(bool)
	d := queue.Delivery{
		Pointer: queue.Pointer{Index: index, DocumentID: documentID, ExecutionID: executionID},
		Ack:     func() error { *acked = true; return nil },
		Nack:    func() error { *nacked = true; return nil },
	}
	return d, acked, nacked
}

func TestQueueBackedPipelineRunsToCompletion(t *testing.T) {
	q := memqueue.New()
	o := newTestOrchestrator(t, QueueBacked(q))
	o.AttachHandler(&stubHandler{step: "a"})
	o.AttachHandler(&stubHandler{step: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = o.RunWorkers(ctx) }()
	// Let the per-step subscribers register before the first enqueue.
	time.Sleep(50 * time.Millisecond)

	p, err := o.ImportDocument(ctx, "idx", uploadOneFile("doc1", "a", "b"))
	require.NoError(t, err)
	assert.False(t, p.Complete())

	require.Eventually(t, func() bool {
		ready, err := o.IsDocumentReady(context.Background(), "idx", "doc1")
		return err == nil && ready
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDeliverReplaysStepOnQueueStatusMismatch(t *testing.T) {
	q := memqueue.New()
	o := newTestOrchestrator(t, QueueBacked(q))
	r := o.runner.(*queuedRunner)
	a := &stubHandler{step: "a"}
	b := &stubHandler{step: "b"}
	o.AttachHandler(a)
	o.AttachHandler(b)

	ctx := context.Background()
	p, err := o.ImportDocument(ctx, "idx", uploadOneFile("doc1", "a", "b"))
	require.NoError(t, err)

	// Run step a once: status advances to b, but pretend the process died
	// before the pointer for b was enqueued and the message for a was
	// acked.
	p, err = o.RunStep(ctx, p)
	require.NoError(t, err)
	require.Equal(t, "b", p.CurrentStep())
	require.Equal(t, 1, a.invoked)

	// The queue redelivers the unacked message for a.
	d, acked, nacked := recordedDelivery("idx", "doc1", p.ExecutionID)
	r.deliver(ctx, "a", d)

	assert.Equal(t, 2, a.invoked, "mismatched delivery must roll back and replay step a")
	assert.True(t, *acked)
	assert.False(t, *nacked)

	persisted, err := o.ReadPipelineStatus(ctx, "idx", "doc1")
	require.NoError(t, err)
	assert.Equal(t, "b", persisted.CurrentStep())
	assert.Equal(t, []string{"a"}, persisted.CompletedSteps)
	assert.Equal(t, 0, b.invoked, "step b runs from its own queue, not from a's delivery")
}

func TestDeliverDropsStaleExecutionPointer(t *testing.T) {
	q := memqueue.New()
	o := newTestOrchestrator(t, QueueBacked(q))
	r := o.runner.(*queuedRunner)
	a := &stubHandler{step: "a"}
	o.AttachHandler(a)

	ctx := context.Background()
	_, err := o.ImportDocument(ctx, "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)

	d, acked, nacked := recordedDelivery("idx", "doc1", "superseded-execution")
	r.deliver(ctx, "a", d)

	assert.Equal(t, 0, a.invoked)
	assert.True(t, *acked)
	assert.False(t, *nacked)
}

func TestDeliverAcksCompletedPipeline(t *testing.T) {
	q := memqueue.New()
	o := newTestOrchestrator(t, QueueBacked(q))
	r := o.runner.(*queuedRunner)
	a := &stubHandler{step: "a"}
	o.AttachHandler(a)

	ctx := context.Background()
	p, err := o.ImportDocument(ctx, "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)
	p, err = o.RunStep(ctx, p)
	require.NoError(t, err)
	require.True(t, p.Complete())

	d, acked, nacked := recordedDelivery("idx", "doc1", p.ExecutionID)
	r.deliver(ctx, "a", d)

	assert.Equal(t, 1, a.invoked, "a completed pipeline must not replay its steps")
	assert.True(t, *acked)
	assert.False(t, *nacked)
}

func TestDeliverNacksOnHandlerFailure(t *testing.T) {
	q := memqueue.New()
	o := newTestOrchestrator(t, QueueBacked(q))
	r := o.runner.(*queuedRunner)
	a := &stubHandler{step: "a", err: errors.New("throttled")}
	o.AttachHandler(a)

	ctx := context.Background()
	p, err := o.ImportDocument(ctx, "idx", uploadOneFile("doc1", "a"))
	require.NoError(t, err)

	d, acked, nacked := recordedDelivery("idx", "doc1", p.ExecutionID)
	r.deliver(ctx, "a", d)

	assert.Equal(t, 1, a.invoked)
	assert.False(t, *acked)
	assert.True(t, *nacked)

	persisted, err := o.ReadPipelineStatus(ctx, "idx", "doc1")
	require.NoError(t, err)
	assert.Equal(t, "a", persisted.CurrentStep(), "a failed step stays current for redelivery")
}

func TestDeliverAcksWhenStatusMissing(t *testing.T) {
	q := memqueue.New()
	o := newTestOrchestrator(t, QueueBacked(q))
	r := o.runner.(*queuedRunner)
	o.AttachHandler(&stubHandler{step: "a"})

	d, acked, _ := recordedDelivery("idx", "never-uploaded", "x")
	r.deliver(context.Background(), "a", d)

	// A missing status document is indistinguishable from a purged
	// document: the pointer is stale, not retryable.
	assert.True(t, *acked)
}
