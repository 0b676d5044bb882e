// Package pipeline implements the DataPipeline state machine: the durable,
// crash-recoverable record of one document moving through its ingestion
// steps, plus the MemoryRecord/Citation types produced at the end of it.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tags maps a tag key to its (possibly repeated) values, per spec.md §3:
// "both keys and values may repeat; order irrelevant".
type Tags map[string][]string

// Reserved tag keys. Callers may not set these directly; they are attached
// by the save-records handler. memoria adopts the leading-double-underscore
// convention (spec.md §9 Open Question #1) rather than a ReservedXTag
// constant family.
const (
	ReservedTagDocumentID    = "__document_id"
	ReservedTagFileID        = "__file_id"
	ReservedTagFilePartition = "__file_partition"
	ReservedTagFileType      = "__file_type"
)

func isReservedKey(key string) bool {
	return strings.HasPrefix(key, "__")
}

// NormalizeTags copies src, rejecting any caller-supplied key in the
// reserved (leading double-underscore) namespace.
func NormalizeTags(src Tags) (Tags, error) {
	out := make(Tags, len(src))
	for k, v := range src {
		if isReservedKey(k) {
			return nil, fmt.Errorf("tag key %q is reserved", k)
		}
		values := make([]string, len(v))
		copy(values, v)
		out[k] = values
	}
	return out, nil
}

// Clone returns a deep copy of t.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		values := make([]string, len(v))
		copy(values, v)
		out[k] = values
	}
	return out
}

// WithReserved returns a copy of t with the reserved document/file tags set.
func (t Tags) WithReserved(documentID, fileID, partitionID, fileType string) Tags {
	out := t.Clone()
	out[ReservedTagDocumentID] = []string{documentID}
	out[ReservedTagFileID] = []string{fileID}
	out[ReservedTagFilePartition] = []string{partitionID}
	out[ReservedTagFileType] = []string{fileType}
	return out
}

// ArtifactType enumerates the kinds of GeneratedFileDescriptor produced by
// handlers over the lifetime of a pipeline.
type ArtifactType string

const (
	ArtifactExtractedText      ArtifactType = "extracted_text"
	ArtifactTextPartition      ArtifactType = "text_partition"
	ArtifactSyntheticData      ArtifactType = "synthetic_data"
	ArtifactTextEmbeddingVector ArtifactType = "text_embedding_vector"
	ArtifactSummary            ArtifactType = "summary"
)

// FileDescriptor is a source file uploaded as part of a pipeline, plus the
// index of every artifact derived from it.
type FileDescriptor struct {
	ID             string                            `json:"id"`
	Name           string                            `json:"name"`
	Size           int64                             `json:"size"`
	MimeType       string                            `json:"mime_type"`
	ContentSHA256  string                             `json:"content_sha256"`
	GeneratedFiles map[string]*GeneratedFileDescriptor `json:"generated_files"`
}

// NewFileDescriptor creates a FileDescriptor with a fresh opaque id.
func NewFileDescriptor(name string, size int64, mimeType, contentSHA256 string) *FileDescriptor {
	return &FileDescriptor{
		ID:             uuid.NewString(),
		Name:           name,
		Size:           size,
		MimeType:       mimeType,
		ContentSHA256:  contentSHA256,
		GeneratedFiles: make(map[string]*GeneratedFileDescriptor),
	}
}

// GeneratedFileDescriptor extends FileDescriptor with provenance: the
// source file it was derived from, its artifact kind, and the set of
// handler names that already processed it (the idempotency gate of §4.2).
type GeneratedFileDescriptor struct {
	FileDescriptor
	ParentID     string          `json:"parent_id"`
	ArtifactType ArtifactType    `json:"artifact_type"`
	ProcessedBy  map[string]bool `json:"processed_by"`

	// SectionNumber carries forward the originating section (PDF page,
	// etc.) a TextPartition/TextEmbeddingVector artifact descends from,
	// for CitationPartition.SectionNumber at retrieval time. Partitions
	// always carry 1 or more (1 for single-stream source files); extracted
	// text and summary artifacts, and the embeddings of summaries, carry
	// zero.
	SectionNumber int `json:"section_number,omitempty"`
}

// NewGeneratedFileDescriptor creates a GeneratedFileDescriptor.
func NewGeneratedFileDescriptor(name string, size int64, mimeType, contentSHA256, parentID string, artifactType ArtifactType) *GeneratedFileDescriptor {
	return &GeneratedFileDescriptor{
		FileDescriptor: *NewFileDescriptor(name, size, mimeType, contentSHA256),
		ParentID:       parentID,
		ArtifactType:   artifactType,
		ProcessedBy:    make(map[string]bool),
	}
}

// Processed reports whether handlerName already touched this artifact.
func (g *GeneratedFileDescriptor) Processed(handlerName string) bool {
	return g.ProcessedBy[handlerName]
}

// MarkProcessed records that handlerName has now touched this artifact.
func (g *GeneratedFileDescriptor) MarkProcessed(handlerName string) {
	if g.ProcessedBy == nil {
		g.ProcessedBy = make(map[string]bool)
	}
	g.ProcessedBy[handlerName] = true
}

// DataPipeline is the durable status document for one ingestion execution,
// per spec.md §3.
type DataPipeline struct {
	Index          string    `json:"index"`
	DocumentID     string    `json:"document_id"`
	ExecutionID    string    `json:"execution_id"`
	Steps          []string  `json:"steps"`
	RemainingSteps []string  `json:"remaining_steps"`
	CompletedSteps []string  `json:"completed_steps"`
	Tags           Tags      `json:"tags"`
	Files          []*FileDescriptor `json:"files"`

	PreviousExecutionsToPurge []*DataPipeline `json:"previous_executions_to_purge"`

	Creation   time.Time `json:"creation"`
	LastUpdate time.Time `json:"last_update"`

	// UploadComplete is transient, in-memory only; never persisted.
	UploadComplete bool `json:"-"`
}

// ErrPipelineCompleted is a programmer error: an attempt to advance a
// pipeline past its last step (spec.md §7, PipelineCompleted).
var ErrPipelineCompleted = fmt.Errorf("pipeline: attempted to advance a completed pipeline")

// ErrDuplicateConsecutiveStep is returned by NewDataPipeline when two
// adjacent step names in the plan are identical.
var ErrDuplicateConsecutiveStep = fmt.Errorf("pipeline: a handler cannot be chained to itself")

// NewDataPipeline builds the initial status document for a fresh execution.
// steps must have no two identical adjacent entries (spec.md §3 invariants).
func NewDataPipeline(index, documentID string, steps []string, tags Tags) (*DataPipeline, error) {
	for i := 1; i < len(steps); i++ {
		if steps[i] == steps[i-1] {
			return nil, ErrDuplicateConsecutiveStep
		}
	}
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return nil, err
	}

	remaining := make([]string, len(steps))
	copy(remaining, steps)

	now := time.Now()
	return &DataPipeline{
		Index:          index,
		DocumentID:     documentID,
		ExecutionID:    uuid.NewString(),
		Steps:          steps,
		RemainingSteps: remaining,
		CompletedSteps: []string{},
		Tags:           normalized,
		Files:          []*FileDescriptor{},
		Creation:       now,
		LastUpdate:     now,
	}, nil
}

// Complete reports whether every step has run (spec.md §3: complete :=
// remainingSteps is empty).
func (p *DataPipeline) Complete() bool {
	return len(p.RemainingSteps) == 0
}

// CurrentStep returns the head of RemainingSteps, or "" if complete.
func (p *DataPipeline) CurrentStep() string {
	if p.Complete() {
		return ""
	}
	return p.RemainingSteps[0]
}

// AdvanceStep moves the current (head) step from RemainingSteps to
// CompletedSteps and bumps LastUpdate. Returns ErrPipelineCompleted if
// there is no current step.
func (p *DataPipeline) AdvanceStep() error {
	if p.Complete() {
		return ErrPipelineCompleted
	}
	step := p.RemainingSteps[0]
	p.RemainingSteps = p.RemainingSteps[1:]
	p.CompletedSteps = append(p.CompletedSteps, step)
	p.LastUpdate = time.Now()
	return nil
}

// RollbackStep moves stepName back from CompletedSteps to the head of
// RemainingSteps. Used by the queue-backed orchestrator (spec.md §4.1.b)
// when a message arrives on a queue that no longer matches the expected
// current step: the crash happened between persisting the advance and
// enqueuing the next pointer, so the step is replayed.
func (p *DataPipeline) RollbackStep(stepName string) error {
	if len(p.CompletedSteps) == 0 || p.CompletedSteps[len(p.CompletedSteps)-1] != stepName {
		return fmt.Errorf("pipeline: %q is not the last completed step", stepName)
	}
	p.CompletedSteps = p.CompletedSteps[:len(p.CompletedSteps)-1]
	p.RemainingSteps = append([]string{stepName}, p.RemainingSteps...)
	p.LastUpdate = time.Now()
	return nil
}

// AddFile appends a source file descriptor.
func (p *DataPipeline) AddFile(fd *FileDescriptor) {
	p.Files = append(p.Files, fd)
}

// GetFile returns the file descriptor with the given id.
func (p *DataPipeline) GetFile(id string) (*FileDescriptor, bool) {
	for _, f := range p.Files {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// GeneratedFilesByType returns every generated artifact of the given type
// across all source files, in file order.
func (p *DataPipeline) GeneratedFilesByType(t ArtifactType) []*GeneratedFileDescriptor {
	var out []*GeneratedFileDescriptor
	for _, f := range p.Files {
		for _, g := range f.GeneratedFiles {
			if g.ArtifactType == t {
				out = append(out, g)
			}
		}
	}
	return out
}

// CapturePreviousExecution appends prev to PreviousExecutionsToPurge after
// flattening prev's own list into the new one and clearing it on the
// stored copy, so the tree never nests more than one level deep
// (spec.md §9 "cyclic reference... broken by flattening").
func (p *DataPipeline) CapturePreviousExecution(prev *DataPipeline) {
	if prev == nil {
		return
	}
	flattened := append([]*DataPipeline{}, prev.PreviousExecutionsToPurge...)
	copyOfPrev := *prev
	copyOfPrev.PreviousExecutionsToPurge = nil
	p.PreviousExecutionsToPurge = append(p.PreviousExecutionsToPurge, &copyOfPrev)
	p.PreviousExecutionsToPurge = append(p.PreviousExecutionsToPurge, flattened...)
}
