package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelai/memoria/embedding"
	"github.com/kestrelai/memoria/mime"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
)

// embeddingBlob is the JSON payload written for each embedding artifact,
// per spec.md §4.6.
type embeddingBlob struct {
	SourceFileName    string    `json:"source_file_name"`
	GeneratorProvider string    `json:"generator_provider"`
	GeneratorName     string    `json:"generator_name"`
	Vector            []float32 `json:"vector"`
	VectorSize        int       `json:"vector_size"`
	Timestamp         time.Time `json:"timestamp"`
}

// ErrEmptyEmbeddingResponse is a fatal, step-ending error: the provider
// returned a zero-length vector (spec.md §4.6: "Failure on empty response
// is fatal to the step").
var ErrEmptyEmbeddingResponse = fmt.Errorf("embed: provider returned an empty vector")

// Embed generates and persists an embedding vector for every TextPartition
// and Summary artifact not yet embedded by the configured provider
// (SyntheticData artifacts are not embedded)
// (spec.md §4.6). Generator identity (provider + model) is baked into the
// artifact file name so multiple embedding models may coexist.
type Embed struct {
	io           orchestrator.IO
	provider     embedding.Provider
	providerName string
}

// NewEmbed creates an Embed handler. providerName identifies the
// embedding backend (e.g. "openai") independently of provider.Info's
// model name, so both land in the embedding blob and the artifact name.
func NewEmbed(io orchestrator.IO, provider embedding.Provider, providerName string) *Embed {
	return &Embed{io: io, provider: provider, providerName: providerName}
}

func (h *Embed) StepName() string { return orchestrator.StepEmbed }

func (h *Embed) processedKey() string {
	return h.StepName() + ":" + h.providerName + ":" + h.provider.Info().ModelName
}

func (h *Embed) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	for _, file := range p.Files {
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType != pipeline.ArtifactTextPartition && artifact.ArtifactType != pipeline.ArtifactSummary {
				continue
			}
			if artifact.Processed(h.processedKey()) {
				continue
			}
			if err := h.embedOne(ctx, p, file, artifact); err != nil {
				return p, fmt.Errorf("embed: %s: %w", artifact.Name, err)
			}
			artifact.MarkProcessed(h.processedKey())
		}
	}
	return p, nil
}

func (h *Embed) embedOne(ctx context.Context, p *pipeline.DataPipeline, file *pipeline.FileDescriptor, artifact *pipeline.GeneratedFileDescriptor) error {
	text, err := h.io.ReadTextFile(ctx, p, artifact.Name)
	if err != nil {
		return err
	}

	vector, err := h.provider.Embed(ctx, text)
	if err != nil {
		return err
	}
	if len(vector) == 0 {
		return ErrEmptyEmbeddingResponse
	}

	info := h.provider.Info()
	blob := embeddingBlob{
		SourceFileName:    artifact.Name,
		GeneratorProvider: h.providerName,
		GeneratorName:     info.ModelName,
		Vector:            vector,
		VectorSize:        len(vector),
		Timestamp:         time.Now(),
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return err
	}

	artifactName := fmt.Sprintf("%s.%s.%s.text_embedding", artifact.Name, h.providerName, info.ModelName)
	if err := h.io.WriteFile(ctx, p, artifactName, data); err != nil {
		return fmt.Errorf("write %s: %w", artifactName, err)
	}

	out := pipeline.NewGeneratedFileDescriptor(artifactName, int64(len(data)), mime.TypeEmbedding, "", file.ID, pipeline.ArtifactTextEmbeddingVector)
	out.SectionNumber = artifact.SectionNumber
	out.MarkProcessed(h.processedKey())
	file.GeneratedFiles[artifactName] = out
	return nil
}

var _ orchestrator.Handler = (*Embed)(nil)
