package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/queue"
)

// queuedRunner drives a pipeline forward by publishing one queue.Pointer
// per step onto the queue named after that step (spec.md §4.1.b). Start
// only enqueues the first pointer and returns; the rest of the plan
// advances as workers started by Serve consume deliveries.
type queuedRunner struct {
	o *Orchestrator
	q queue.Adapter
}

// QueueBacked builds a RunnerFactory for asynchronous, queue-driven
// execution: each step handler's queue is named after its step, and
// advancing the pipeline is driven by message delivery rather than a
// caller blocking on Start (spec.md §4.1.b).
func QueueBacked(q queue.Adapter) RunnerFactory {
	return func(o *Orchestrator) StepRunner {
		return &queuedRunner{o: o, q: q}
	}
}

func (r *queuedRunner) Start(ctx context.Context, p *pipeline.DataPipeline) error {
	if p.Complete() {
		return nil
	}
	return r.enqueueCurrent(ctx, p)
}

func (r *queuedRunner) enqueueCurrent(ctx context.Context, p *pipeline.DataPipeline) error {
	step := p.CurrentStep()
	return r.q.Enqueue(ctx, step, queue.Pointer{
		Index:       p.Index,
		DocumentID:  p.DocumentID,
		ExecutionID: p.ExecutionID,
	})
}

// Serve subscribes one worker per attached handler, blocking until ctx is
// cancelled or a subscription fails unrecoverably. It is meant to be run
// by the long-lived server process (cmd/memoriad), not by request
// handling goroutines.
func (r *queuedRunner) Serve(ctx context.Context) error {
	r.o.mu.RLock()
	steps := make([]string, 0, len(r.o.handlers))
	for step := range r.o.handlers {
		steps = append(steps, step)
	}
	r.o.mu.RUnlock()

	if len(steps) == 0 {
		return fmt.Errorf("orchestrator: no handlers attached, nothing to serve")
	}

	errCh := make(chan error, len(steps))
	for _, step := range steps {
		step := step
		go func() {
			errCh <- r.q.Subscribe(ctx, step, func(ctx context.Context, d queue.Delivery) {
				r.deliver(ctx, step, d)
			})
		}()
	}

	for range steps {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// deliver handles one queue delivery: reload the durable status, detect
// and recover from a crash between persisting a step's advance and
// enqueuing the next pointer, run the handler, and either enqueue the
// next step or leave the pipeline complete.
func (r *queuedRunner) deliver(ctx context.Context, queueName string, d queue.Delivery) {
	p, err := r.o.ReadPipelineStatus(ctx, d.Pointer.Index, d.Pointer.DocumentID)
	if err != nil {
		r.o.logger.Error("queued runner: read status failed", "error", err, "index", d.Pointer.Index, "document_id", d.Pointer.DocumentID)
		_ = d.Nack()
		return
	}
	if p == nil || p.ExecutionID != d.Pointer.ExecutionID {
		// The execution this pointer belongs to has been superseded
		// (re-upload) or purged; the message is stale.
		r.o.logger.Info("queued runner: dropping stale pointer", "queue", queueName, "index", d.Pointer.Index, "document_id", d.Pointer.DocumentID)
		_ = d.Ack()
		return
	}
	if p.Complete() {
		_ = d.Ack()
		return
	}

	if p.CurrentStep() != queueName {
		// persist-status happened but enqueue-next did not: the message
		// for queueName was never acked, so it was redelivered after the
		// pipeline had already advanced past it. Roll the advance back
		// and replay the step; handlers are idempotent so re-running it
		// is safe (spec.md §4.2).
		if err := p.RollbackStep(queueName); err != nil {
			r.o.logger.Error("queued runner: cannot recover mismatched delivery", "error", err, "queue", queueName, "current_step", p.CurrentStep())
			_ = d.Nack()
			return
		}
		if err := r.o.persistStatus(ctx, p); err != nil {
			r.o.logger.Error("queued runner: persist rollback failed", "error", err)
			_ = d.Nack()
			return
		}
	}

	updated, err := r.o.RunStep(ctx, p)
	if err != nil {
		_ = d.Nack()
		return
	}

	if !updated.Complete() {
		if err := r.enqueueCurrent(ctx, updated); err != nil {
			r.o.logger.Error("queued runner: enqueue next step failed", "error", err, "next_step", updated.CurrentStep())
			_ = d.Nack()
			return
		}
	}
	_ = d.Ack()
}
