package embedding

import "context"

// MockProvider is a mock Provider for tests.
type MockProvider struct {
	// Embedding is returned for single-text requests.
	Embedding []float32
	// Embeddings is returned for batch requests, one per input.
	Embeddings [][]float32
	// Err is returned if set.
	Err error
	// ModelInfo overrides the default mock Info.
	ModelInfo *Info
}

// NewMockProvider creates a MockProvider with a fixed embedding.
func NewMockProvider(embedding []float32) *MockProvider {
	return &MockProvider{Embedding: embedding}
}

// NewMockProviderWithError creates a MockProvider that always errors.
func NewMockProviderWithError(err error) *MockProvider {
	return &MockProvider{Err: err}
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.Embedding, m.Err
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string, callback ProgressCallback) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Embeddings) > 0 {
		if callback != nil {
			callback(len(texts), len(texts))
		}
		return m.Embeddings, nil
	}
	results := make([][]float32, len(texts))
	for i := range texts {
		results[i] = m.Embedding
		if callback != nil {
			callback(i+1, len(texts))
		}
	}
	return results, nil
}

func (m *MockProvider) Info() Info {
	if m.ModelInfo != nil {
		return *m.ModelInfo
	}
	return DefaultInfo("mock-embedding-model")
}

// EmbeddingError represents an embedding-provider-specific failure,
// wrapping the underlying transport or API error for errors.Is/As.
type EmbeddingError struct {
	Message string
	Cause   error
}

func (e *EmbeddingError) Error() string {
	return e.Message
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

var _ Provider = (*MockProvider)(nil)
