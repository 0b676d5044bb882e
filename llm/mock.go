package llm

import "context"

// MockTextGenerator is a test double for both LLM and TextGenerator. It
// returns a fixed response or a fixed error. GenerateStream sends the
// whole response as one token chunk, then a Done chunk carrying Usage.
type MockTextGenerator struct {
	Response string
	Err      error
	Usage    *TokenUsage
}

func NewMockTextGenerator(response string) *MockTextGenerator {
	return &MockTextGenerator{Response: response}
}

func NewMockTextGeneratorWithError(err error) *MockTextGenerator {
	return &MockTextGenerator{Err: err}
}

func (m *MockTextGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return m.Response, m.Err
}

func (m *MockTextGenerator) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	return m.Response, m.Err
}

func (m *MockTextGenerator) GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 2)
	if m.Err != nil {
		close(ch)
		return ch, m.Err
	}
	usage := m.Usage
	if usage == nil {
		usage = &TokenUsage{}
	}
	if m.Response != "" {
		ch <- StreamChunk{Token: m.Response}
	}
	ch <- StreamChunk{Done: true, Usage: usage}
	close(ch)
	return ch, nil
}
