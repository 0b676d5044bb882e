package llm

import "context"

// ChatMessage is one turn in a chat-style completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// LLM is the synchronous completion interface, used where a caller wants
// the whole response rather than a token stream.
type LLM interface {
	// Complete generates a completion for a given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// Chat generates a response for a list of chat messages.
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// TokenUsage reports token accounting for one generation call, the
// trailer spec.md §4.10 step 10 attaches to a MemoryAnswer.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamChunk is one unit of a TextGenerator's output: either a token
// delta, or — on the final chunk, once the provider reports it — the
// completed usage trailer.
type StreamChunk struct {
	Token string
	Done  bool
	Usage *TokenUsage
}

// TextGenerator streams a completion for a prompt, per spec.md §2: "Prompt
// → streamed token sequence with optional token-usage trailer". The
// returned channel is closed after the final chunk (Done=true) or on
// error; callers should drain it to completion or cancel ctx.
type TextGenerator interface {
	GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error)
}
