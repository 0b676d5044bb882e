// Package orchestrator drives a pipeline.DataPipeline through its steps,
// either synchronously in-process or asynchronously over a queue.Adapter,
// both variants sharing the same durable status document (spec.md §4.1).
//
// There is no teacher file modeling a multi-step execution engine
// directly; this package is grounded in spec.md §4.1/§4.1.a/§4.1.b and in
// the stage/run bookkeeping shape of
// _examples/other_examples/.../pipeline-orchestrator.go.go, expressed in
// the teacher's small-interface, functional-option construction idiom
// (c.f. embedding.NewResilient, vectorstore/chromem.New).
package orchestrator

import (
	"context"

	"github.com/kestrelai/memoria/pipeline"
)

// Handler is the unit of work for one pipeline step (spec.md §4.2). A nil
// error return is success. A non-nil error is a recoverable failure
// (spec.md §7's Transient/Fatal-to-step kinds): the in-process runner
// aborts the pipeline with that error, the queue-backed runner nacks for
// redelivery. A missing handler is a programmer error and panics instead
// of returning an error, per spec.md §9's "exceptions as control flow"
// replacement — that is not a handler failure, it's orchestrator misuse.
// Running a step on a completed pipeline returns
// pipeline.ErrPipelineCompleted.
type Handler interface {
	// StepName is this handler's step name, matching an entry in the
	// pipeline's Steps plan.
	StepName() string
	// Invoke processes p's current step and returns the updated pipeline.
	// Handlers must be idempotent (spec.md §4.2): re-invoking over
	// already-processed artifacts must not create duplicates.
	Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error)
}
