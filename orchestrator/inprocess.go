package orchestrator

import (
	"context"

	"github.com/kestrelai/memoria/pipeline"
)

// inProcessRunner runs every remaining step synchronously on the calling
// goroutine (spec.md §4.1.a): Start does not return until the pipeline
// completes or a step fails.
type inProcessRunner struct {
	o *Orchestrator
}

// InProcess builds a RunnerFactory for synchronous, same-process execution.
// Suitable for single-node deployments and tests; AttachHandler's queue
// binding step is a no-op in this mode (spec.md §4.1.a).
func InProcess() RunnerFactory {
	return func(o *Orchestrator) StepRunner {
		return &inProcessRunner{o: o}
	}
}

func (r *inProcessRunner) Start(ctx context.Context, p *pipeline.DataPipeline) error {
	for !p.Complete() {
		if err := ctx.Err(); err != nil {
			return err
		}
		updated, err := r.o.RunStep(ctx, p)
		if err != nil {
			return err
		}
		p = updated
	}
	return nil
}
