package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/vectorstore"
)

// SaveRecords builds a MemoryRecord for every embedding artifact and
// upserts it into every configured VectorStore, then consolidates any
// previous executions of the same document by deleting their now-stale
// records (spec.md §4.7).
type SaveRecords struct {
	io     orchestrator.IO
	stores []vectorstore.Store
}

// NewSaveRecords creates a SaveRecords handler fanning out to stores.
func NewSaveRecords(io orchestrator.IO, stores []vectorstore.Store) *SaveRecords {
	return &SaveRecords{io: io, stores: stores}
}

func (h *SaveRecords) StepName() string { return orchestrator.StepSaveRecords }

func (h *SaveRecords) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	if err := h.consolidate(ctx, p); err != nil {
		return p, fmt.Errorf("save-records: consolidate: %w", err)
	}

	for _, file := range p.Files {
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType != pipeline.ArtifactTextEmbeddingVector {
				continue
			}
			if artifact.Processed(h.StepName()) {
				continue
			}
			if err := h.saveOne(ctx, p, file, artifact); err != nil {
				return p, fmt.Errorf("save-records: %s: %w", artifact.Name, err)
			}
			artifact.MarkProcessed(h.StepName())
		}
	}
	return p, nil
}

func (h *SaveRecords) saveOne(ctx context.Context, p *pipeline.DataPipeline, file *pipeline.FileDescriptor, artifact *pipeline.GeneratedFileDescriptor) error {
	raw, err := h.io.ReadFile(ctx, p, artifact.Name)
	if err != nil {
		return err
	}
	var blob embeddingBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return fmt.Errorf("decode %s: %w", artifact.Name, err)
	}

	partitionText, err := h.io.ReadTextFile(ctx, p, blob.SourceFileName)
	if err != nil {
		return err
	}

	// The record id is derived from the artifact name, not the descriptor
	// id: names are deterministic in (file, partition, generator), so
	// re-ingesting identical content overwrites the same record, while a
	// fresh descriptor uuid per execution would mint a duplicate.
	record := pipeline.MemoryRecord{
		ID:     pipeline.BuildMemoryRecordID(p.DocumentID, artifact.Name),
		Vector: blob.Vector,
		Tags:   p.Tags.WithReserved(p.DocumentID, file.ID, artifact.Name, file.MimeType),
		Payload: map[string]interface{}{
			"file_name":       blob.SourceFileName,
			"vector_provider": blob.GeneratorProvider,
			"vector_model":    blob.GeneratorName,
			"last_update":     blob.Timestamp,
			"text":            partitionText,
			"section_number":  artifact.SectionNumber,
		},
	}

	for _, store := range h.stores {
		if err := store.EnsureIndex(ctx, p.Index); err != nil {
			return fmt.Errorf("ensure index %s: %w", p.Index, err)
		}
		if err := store.Upsert(ctx, p.Index, []pipeline.MemoryRecord{record}); err != nil {
			return fmt.Errorf("upsert %s: %w", record.ID, err)
		}
	}
	return nil
}

// consolidate reclaims memory from superseded executions of the same
// document: any embedding record the old execution produced that the new
// execution will not retain is deleted from every VectorStore (spec.md
// §4.7 Consolidation). It then clears PreviousExecutionsToPurge.
func (h *SaveRecords) consolidate(ctx context.Context, p *pipeline.DataPipeline) error {
	if len(p.PreviousExecutionsToPurge) == 0 {
		return nil
	}

	retain := make(map[string]bool)
	for _, artifact := range p.GeneratedFilesByType(pipeline.ArtifactTextEmbeddingVector) {
		retain[pipeline.BuildMemoryRecordID(p.DocumentID, artifact.Name)] = true
	}

	for _, prev := range p.PreviousExecutionsToPurge {
		var stale []string
		for _, artifact := range prev.GeneratedFilesByType(pipeline.ArtifactTextEmbeddingVector) {
			id := pipeline.BuildMemoryRecordID(prev.DocumentID, artifact.Name)
			if !retain[id] {
				stale = append(stale, id)
			}
		}
		if len(stale) == 0 {
			continue
		}
		for _, store := range h.stores {
			if err := store.Delete(ctx, prev.Index, stale); err != nil {
				return fmt.Errorf("delete stale records from %s: %w", prev.Index, err)
			}
		}
	}

	p.PreviousExecutionsToPurge = nil
	return nil
}

var _ orchestrator.Handler = (*SaveRecords)(nil)
