// Package moderation implements the content-moderation gate SearchClient
// applies to generated answers (spec.md §4.10 step 9). It is an
// [EXPANSION]: the teacher has no moderation layer of its own, but already
// depends on sashabaranov/go-openai, which exposes the Moderation API the
// teacher's OpenAIEmbedding/OpenAILLM use for completions and embeddings.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Result is the outcome of moderating one piece of text.
type Result struct {
	Flagged    bool
	Categories []string
}

// Moderator flags unsafe text. Used by SearchClient to gate a generated
// answer before it is returned to the caller.
type Moderator interface {
	Moderate(ctx context.Context, text string) (Result, error)
}

// OpenAIModerator moderates via OpenAI's moderation endpoint.
type OpenAIModerator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIModerator creates an OpenAIModerator. An empty apiKey falls
// back to OPENAI_API_KEY.
func NewOpenAIModerator(apiKey string) *OpenAIModerator {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return NewOpenAIModeratorWithClient(openai.NewClient(apiKey))
}

// NewOpenAIModeratorWithClient creates an OpenAIModerator around an
// existing client, for sharing one client across embedding, LLM, and
// moderation.
func NewOpenAIModeratorWithClient(client *openai.Client) *OpenAIModerator {
	return &OpenAIModerator{
		client: client,
		model:  openai.ModerationOmniLatest,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}
}

func (m *OpenAIModerator) Moderate(ctx context.Context, text string) (Result, error) {
	if text == "" {
		return Result{}, nil
	}
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return Result{}, fmt.Errorf("moderation: request failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return Result{}, nil
	}

	r := resp.Results[0]
	if !r.Flagged {
		return Result{}, nil
	}

	var categories []string
	for name, flagged := range map[string]bool{
		"hate":             r.Categories.Hate,
		"hate/threatening": r.Categories.HateThreatening,
		"harassment":       r.Categories.Harassment,
		"self-harm":        r.Categories.SelfHarm,
		"sexual":           r.Categories.Sexual,
		"sexual/minors":    r.Categories.SexualMinors,
		"violence":         r.Categories.Violence,
		"violence/graphic": r.Categories.ViolenceGraphic,
	} {
		if flagged {
			categories = append(categories, name)
		}
	}
	m.logger.Warn("moderation flagged content", "categories", categories)

	return Result{Flagged: true, Categories: categories}, nil
}

var _ Moderator = (*OpenAIModerator)(nil)

// NoopModerator never flags anything. Used when moderation is disabled.
type NoopModerator struct{}

func (NoopModerator) Moderate(ctx context.Context, text string) (Result, error) {
	return Result{}, nil
}

var _ Moderator = NoopModerator{}
