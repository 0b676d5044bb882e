package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds text via the OpenAI embeddings API.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
	info   Info
	logger *slog.Logger
}

// NewOpenAIProvider creates an OpenAIProvider. An empty apiKey falls back
// to OPENAI_API_KEY. An empty modelName defaults to text-embedding-3-small.
func NewOpenAIProvider(apiKey, modelName string) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return NewOpenAIProviderWithClient(openai.NewClient(apiKey), modelName)
}

// NewOpenAIProviderWithClient creates an OpenAIProvider around an existing
// client, for sharing one client across embedding, LLM, and moderation.
func NewOpenAIProviderWithClient(client *openai.Client, modelName string) *OpenAIProvider {
	info := OpenAISmallEmbedding3Info()
	model := openai.SmallEmbedding3
	if modelName != "" {
		model = openai.EmbeddingModel(modelName)
		info = DefaultInfo(modelName)
		if modelName == "text-embedding-3-large" {
			info = OpenAILargeEmbedding3Info()
		}
	}

	return &OpenAIProvider{
		client: client,
		model:  model,
		info:   info,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string, callback ProgressCallback) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := o.embedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if callback != nil {
		callback(len(texts), len(texts))
	}
	return vectors, nil
}

func (o *OpenAIProvider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: o.model,
	})
	if err != nil {
		o.logger.Error("embedding request failed", "count", len(texts), "error", err)
		return nil, &EmbeddingError{Message: fmt.Sprintf("openai embedding failed: %v", err), Cause: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &EmbeddingError{Message: fmt.Sprintf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))}
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (o *OpenAIProvider) Info() Info {
	return o.info
}

var _ Provider = (*OpenAIProvider)(nil)
