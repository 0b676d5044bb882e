// Package handlers implements the five ingestion handlers plus the two
// deletion handlers, all as orchestrator.Handler implementations driven
// by the same DataPipeline the orchestrator persists (spec.md §4.2-§4.9).
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrelai/memoria/extract"
	"github.com/kestrelai/memoria/mime"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
)

// sectionSeparator joins multi-section extracted text (PDF pages, etc.)
// so the partition handler can recover each chunk's originating section
// number by counting separators up to its offset, without a second
// artifact to carry that bookkeeping.
const sectionSeparator = "\f"

// Extract selects an extractor by MIME type and decodes every source file
// not yet extracted into a single ExtractedText artifact (spec.md §4.3).
type Extract struct {
	registry *extract.Registry
	io       orchestrator.IO
}

// NewExtract creates an Extract handler using registry to resolve
// extractors and io to read/write pipeline-scoped files.
func NewExtract(registry *extract.Registry, io orchestrator.IO) *Extract {
	return &Extract{registry: registry, io: io}
}

func (h *Extract) StepName() string { return orchestrator.StepExtract }

func (h *Extract) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	for _, file := range p.Files {
		artifactName := file.Name + ".extract.txt"
		if existing, ok := file.GeneratedFiles[artifactName]; ok && existing.Processed(h.StepName()) {
			continue
		}

		text, artifactMime, err := h.extractOne(ctx, p, file)
		if err != nil {
			return p, fmt.Errorf("extract: %s: %w", file.Name, err)
		}

		if err := h.io.WriteTextFile(ctx, p, artifactName, text); err != nil {
			return p, fmt.Errorf("extract: write %s: %w", artifactName, err)
		}

		artifact := pipeline.NewGeneratedFileDescriptor(artifactName, int64(len(text)), artifactMime, "", file.ID, pipeline.ArtifactExtractedText)
		artifact.MarkProcessed(h.StepName())
		file.GeneratedFiles[artifactName] = artifact
	}
	return p, nil
}

// extractOne decodes file's content into text and the MIME type the
// artifact should carry. Files already in a plain-text MIME pass through
// unchanged; anything else is routed to a registered extract.Extractor.
func (h *Extract) extractOne(ctx context.Context, p *pipeline.DataPipeline, file *pipeline.FileDescriptor) (string, string, error) {
	if mime.IsPlainText(file.MimeType) {
		text, err := h.io.ReadTextFile(ctx, p, file.Name)
		if err != nil {
			return "", "", err
		}
		return text, file.MimeType, nil
	}

	content, err := h.io.ReadFile(ctx, p, file.Name)
	if err != nil {
		return "", "", err
	}
	extractor, err := h.registry.For(file.MimeType)
	if err != nil {
		return "", "", err
	}
	sections, err := extractor.Extract(ctx, content, file.Name)
	if err != nil {
		return "", "", err
	}

	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.Text
	}
	return strings.Join(parts, sectionSeparator), mime.TypeText, nil
}

var _ orchestrator.Handler = (*Extract)(nil)
