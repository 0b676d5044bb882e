package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const OpenAIAPIURLv1 = "https://api.openai.com/v1"

// OpenAITextGenerator is the chat-completion-backed TextGenerator (and
// LLM), kept from the teacher's OpenAILLM and extended with a streamed
// token-usage trailer via the Chat Completions API's stream_options.
type OpenAITextGenerator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewOpenAITextGenerator(baseUrl, model, apiKey string) *OpenAITextGenerator {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if baseUrl == "" {
		baseUrl = os.Getenv("OPENAI_URL")
		if baseUrl == "" {
			baseUrl = OpenAIAPIURLv1
		}
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseUrl
	client := openai.NewClientWithConfig(config)

	return &OpenAITextGenerator{
		client: client,
		model:  model,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
}

func NewOpenAITextGeneratorWithClient(client *openai.Client, model string) *OpenAITextGenerator {
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAITextGenerator{
		client: client,
		model:  model,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
}

func (o *OpenAITextGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return o.Chat(ctx, []ChatMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}})
}

func (o *OpenAITextGenerator) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	o.logger.Info("chat called", "model", o.model, "message_count", len(messages))

	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: openaiMessages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams prompt's completion token by token, closing with
// a final StreamChunk{Done: true, Usage: ...} once the provider reports
// token counts (stream_options.include_usage).
func (o *OpenAITextGenerator) GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	o.logger.Info("generate stream called", "model", o.model, "prompt_len", len(prompt))

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				o.logger.Error("stream receive error", "error", err)
				return
			}

			var delta string
			if len(resp.Choices) > 0 {
				delta = resp.Choices[0].Delta.Content
			}
			var usage *TokenUsage
			done := false
			if resp.Usage != nil {
				usage = &TokenUsage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				}
				done = true
			}
			if delta == "" && usage == nil {
				continue
			}
			select {
			case out <- StreamChunk{Token: delta, Done: done, Usage: usage}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
