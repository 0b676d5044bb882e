package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelai/memoria/contentstore"
	"github.com/kestrelai/memoria/mime"
	"github.com/kestrelai/memoria/pipeline"
)

// StatusFileName is the well-known name of the persisted status document,
// per spec.md §6: "<index>/<documentId>/__pipeline_status.json".
const StatusFileName = "__pipeline_status.json"

// Standard step names. Handlers register under one of these (or a custom
// name); delete_document and delete_index are always single-step plans.
const (
	StepExtract        = "extract"
	StepPartition      = "partition"
	StepSummarize      = "summarize"
	StepEmbed          = "gen_embeddings"
	StepSaveRecords    = "save_records"
	StepDeleteDocument = "delete_document"
	StepDeleteIndex    = "delete_index"
)

// DefaultSteps is the canonical ingestion plan (spec.md §4.3-§4.7 in
// order).
var DefaultSteps = []string{StepExtract, StepPartition, StepSummarize, StepEmbed, StepSaveRecords}

// UploadFile is one source file supplied to ImportDocument.
type UploadFile struct {
	Name    string
	Content []byte
}

// UploadRequest is the caller-supplied payload for ImportDocument
// (spec.md §4.1, §6 POST /upload).
type UploadRequest struct {
	DocumentID string
	Tags       pipeline.Tags
	Steps      []string
	Files      []UploadFile
}

// ErrNoHandlerForStep is a fatal, programmer-facing error: a step in the
// plan has no registered handler (spec.md §4.1.a step 1).
var ErrNoHandlerForStep = errors.New("orchestrator: no handler registered for step")

// StepRunner is the execution strategy an Orchestrator delegates to: one
// implementation runs steps synchronously in-process, the other enqueues
// pointers onto a queue.Adapter (spec.md §9's replacement for a class
// hierarchy of orchestrator subclasses — one struct, one interchangeable
// capability).
type StepRunner interface {
	// Start begins (or resumes) execution of p from its current step.
	Start(ctx context.Context, p *pipeline.DataPipeline) error
}

// Orchestrator is the shared base described in spec.md §4.1: it owns
// upload, status read/write, and handler registration; the actual step
// execution strategy is injected via StepRunner.
type Orchestrator struct {
	store    contentstore.ContentStore
	logger   *slog.Logger
	io       IO
	runner   StepRunner

	mu       sync.RWMutex
	handlers map[string]Handler
}

// RunnerFactory builds a StepRunner bound to an Orchestrator. Passed to
// New so the runner can call back into the orchestrator (RunStep,
// persistStatus) without a circular constructor dependency.
type RunnerFactory func(*Orchestrator) StepRunner

// New creates an Orchestrator over store, with its step-execution strategy
// supplied by makeRunner (InProcess or QueueBacked below).
func New(store contentstore.ContentStore, logger *slog.Logger, makeRunner RunnerFactory) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:    store,
		logger:   logger,
		io:       IO{store: store},
		handlers: make(map[string]Handler),
	}
	o.runner = makeRunner(o)
	return o
}

// IO returns the scoped file-access helper handlers use.
func (o *Orchestrator) IO() IO {
	return o.io
}

// AttachHandler registers h for its step name (spec.md §4.1:
// "AttachHandler(handler) — registers a handler; in queue-backed mode
// also binds it to the queue named after its step"). The binding itself —
// subscribing a worker loop to that queue — happens when the queue-backed
// runner's Serve is started, not here; AttachHandler only has to make the
// handler resolvable by step name before that happens.
func (o *Orchestrator) AttachHandler(h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[h.StepName()] = h
}

func (o *Orchestrator) handlerFor(step string) (Handler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handlers[step]
	return h, ok
}

// ImportDocument validates the request, writes the uploaded files and the
// initial status document, and hands the pipeline to the configured
// StepRunner (spec.md §4.1 Upload: "status-after-files rule: status never
// points at missing bytes").
func (o *Orchestrator) ImportDocument(ctx context.Context, index string, req UploadRequest) (*pipeline.DataPipeline, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("orchestrator: upload requires at least one file")
	}
	documentID := req.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}
	steps := req.Steps
	if steps == nil {
		steps = append([]string{}, DefaultSteps...)
	}

	if err := o.store.CreateIndexDirectory(ctx, index); err != nil {
		return nil, fmt.Errorf("orchestrator: create index directory: %w", err)
	}
	if err := o.store.CreateDocumentDirectory(ctx, index, documentID); err != nil {
		return nil, fmt.Errorf("orchestrator: create document directory: %w", err)
	}

	prev, err := o.ReadPipelineStatus(ctx, index, documentID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read previous status: %w", err)
	}

	p, err := pipeline.NewDataPipeline(index, documentID, steps, req.Tags)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.ExecutionID != p.ExecutionID {
		p.CapturePreviousExecution(prev)
	}

	// Write every source file's bytes before the status document points
	// at them (spec.md §4.1 "status never points at missing bytes").
	for _, f := range req.Files {
		sum := sha256.Sum256(f.Content)
		fd := pipeline.NewFileDescriptor(f.Name, int64(len(f.Content)), mime.DetectFromFileName(f.Name), hex.EncodeToString(sum[:]))
		if err := o.io.WriteFile(ctx, p, f.Name, f.Content); err != nil {
			return nil, fmt.Errorf("orchestrator: write file %s: %w", f.Name, err)
		}
		p.AddFile(fd)
	}
	p.UploadComplete = true

	if err := o.persistStatus(ctx, p); err != nil {
		return nil, fmt.Errorf("orchestrator: persist initial status: %w", err)
	}

	if err := o.runner.Start(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// StartDocumentDeletion builds and starts a single-step delete_document
// pipeline (spec.md §4.1).
func (o *Orchestrator) StartDocumentDeletion(ctx context.Context, index, documentID string) (*pipeline.DataPipeline, error) {
	return o.startSingleStepPipeline(ctx, index, documentID, StepDeleteDocument)
}

// StartIndexDeletion builds and starts a single-step delete_index
// pipeline (spec.md §4.1).
func (o *Orchestrator) StartIndexDeletion(ctx context.Context, index string) (*pipeline.DataPipeline, error) {
	return o.startSingleStepPipeline(ctx, index, "", StepDeleteIndex)
}

func (o *Orchestrator) startSingleStepPipeline(ctx context.Context, index, documentID, step string) (*pipeline.DataPipeline, error) {
	p, err := pipeline.NewDataPipeline(index, documentID, []string{step}, nil)
	if err != nil {
		return nil, err
	}
	if err := o.persistStatus(ctx, p); err != nil {
		return nil, fmt.Errorf("orchestrator: persist %s status: %w", step, err)
	}
	if err := o.runner.Start(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// ReadPipelineStatus reads the canonical status document for (index,
// documentId), returning (nil, nil) if it does not exist (spec.md §4.1).
func (o *Orchestrator) ReadPipelineStatus(ctx context.Context, index, documentID string) (*pipeline.DataPipeline, error) {
	data, err := o.store.ReadFile(ctx, index, documentID, StatusFileName)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return pipeline.Unmarshal(data)
}

// IsDocumentReady reports whether a document's pipeline exists, is
// complete, and has at least one file (spec.md §4.1).
func (o *Orchestrator) IsDocumentReady(ctx context.Context, index, documentID string) (bool, error) {
	p, err := o.ReadPipelineStatus(ctx, index, documentID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	return p.Complete() && len(p.Files) > 0, nil
}

// persistStatus atomically writes p's status document (spec.md §5
// "status file is rewritten atomically").
func (o *Orchestrator) persistStatus(ctx context.Context, p *pipeline.DataPipeline) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	return o.store.WriteFile(ctx, p.Index, p.DocumentID, StatusFileName, data)
}

// workerServer is implemented by StepRunner strategies that need a
// long-lived worker loop (queuedRunner); inProcessRunner does not
// implement it, so RunWorkers is a no-op under in-process mode.
type workerServer interface {
	Serve(ctx context.Context) error
}

// RunWorkers starts the orchestrator's background worker loop, if its
// StepRunner has one (spec.md §4.1.b: the queue-backed mode is driven by
// subscriber workers rather than by the Start call blocking). Blocks
// until ctx is cancelled.
func (o *Orchestrator) RunWorkers(ctx context.Context) error {
	s, ok := o.runner.(workerServer)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.Serve(ctx)
}

// RunStep invokes the handler for p's current step and, on success,
// advances and persists the pipeline. It is shared by both StepRunner
// implementations (spec.md §4.1.a/§4.1.b both "invoke handler... on
// success advance+persist"). Returns the updated pipeline and any
// handler/persist error; a nil error with p.Complete() true means the
// pipeline finished.
func (o *Orchestrator) RunStep(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	if p.Complete() {
		return p, pipeline.ErrPipelineCompleted
	}
	step := p.CurrentStep()
	handler, ok := o.handlerFor(step)
	if !ok {
		panic(fmt.Sprintf("%v: %q", ErrNoHandlerForStep, step))
	}

	updated, err := handler.Invoke(ctx, p)
	if err != nil {
		o.logger.Warn("step failed", "step", step, "index", p.Index, "document_id", p.DocumentID, "error", err)
		return p, err
	}
	if updated == nil {
		updated = p
	}
	if err := updated.AdvanceStep(); err != nil {
		return updated, err
	}
	if err := o.persistStatus(ctx, updated); err != nil {
		return updated, fmt.Errorf("orchestrator: persist status after %s: %w", step, err)
	}
	o.logger.Info("step completed", "step", step, "index", updated.Index, "document_id", updated.DocumentID, "remaining", len(updated.RemainingSteps))
	return updated, nil
}
