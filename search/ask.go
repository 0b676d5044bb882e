package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/prompts"
	"github.com/kestrelai/memoria/vectorstore"
)

// ModeratedAnswerText is substituted for a generated answer that content
// moderation flags (spec.md §4.10 step 9).
const ModeratedAnswerText = "The answer to your question was removed because it did not comply with content moderation policies."

// Ask resolves a question against index and returns the complete
// MemoryAnswer (spec.md §4.10). It is a thin wrapper over AskStream that
// drains the channel and returns the final snapshot.
func (c *Client) Ask(ctx context.Context, index, question string, opts AskOptions) (MemoryAnswer, error) {
	ch, err := c.AskStream(ctx, index, question, opts)
	if err != nil {
		return MemoryAnswer{}, err
	}
	var last MemoryAnswer
	for a := range ch {
		last = a
	}
	return last, nil
}

// AskStream implements spec.md §4.10's Ask algorithm, streaming
// progressive MemoryAnswer snapshots as tokens arrive. An error is
// returned synchronously when embedding the question, searching, or
// starting generation fails. Once streaming starts no error is reported:
// the channel is closed after the final snapshot, and a generation stream
// that ends early yields the text received so far (or a NoFacts
// no-result if none was).
func (c *Client) AskStream(ctx context.Context, index, question string, opts AskOptions) (<-chan MemoryAnswer, error) {
	resolved := c.resolve(opts)
	question = ensureTrailingQuestionMark(question)

	// Step 2: token budget = maxAskPromptSize - tokens(answerPrompt) -
	// tokens(question) - answerTokens.
	budget := c.maxAskPromptSize - c.countTokens(resolved.PromptTemplate) - c.countTokens(question) - resolved.MaxTokens
	if budget < 0 {
		budget = 0
	}

	// Step 3: query for the top MaxMatchesCount results above minRelevance.
	vec, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("search: embed question: %w", err)
	}
	limit := resolved.MaxMatchesCount
	if limit <= 0 {
		limit = DefaultMaxMatchesCount
	}
	records, err := c.unionSearch(ctx, index, vec, resolved.Filters, resolved.MinRelevance, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if len(records) == 0 {
		return noFactsChannel(question), nil
	}

	// Step 4: render facts in descending relevance, stop (don't
	// skip-and-continue) once a fact would exceed the remaining budget.
	facts, citations, fit := c.packFacts(records, resolved, budget)
	if !fit {
		ch := make(chan MemoryAnswer, 1)
		ch <- MemoryAnswer{Question: question, NoResult: true, NoResultReason: string(ReasonInsufficientTokens), StreamState: StreamStateReset}
		close(ch)
		return ch, nil
	}

	// Steps 6-10: fill the answer prompt and stream the generation.
	answerPrompt := prompts.Fill(resolved.PromptTemplate, map[string]string{
		"facts":    facts,
		"input":    question,
		"notFound": resolved.EmptyAnswerText,
	})

	promptIn := c.countTokens(answerPrompt)
	stream, err := c.generator.GenerateStream(ctx, answerPrompt)
	if err != nil {
		return nil, fmt.Errorf("search: generate: %w", err)
	}

	out := make(chan MemoryAnswer)
	go c.drainGeneration(ctx, question, citations, resolved, promptIn, stream, out)
	return out, nil
}

// drainGeneration reads stream, emitting one Append MemoryAnswer snapshot
// per token and a final Reset/Last snapshot once the full answer is known
// and has passed the empty-answer and moderation checks (spec.md §4.10
// steps 7-10).
func (c *Client) drainGeneration(ctx context.Context, question string, citations []pipeline.Citation, opts AskOptions, promptTokens int, stream <-chan llm.StreamChunk, out chan<- MemoryAnswer) {
	defer close(out)

	var b strings.Builder
	var usage *llm.TokenUsage
	for chunk := range stream {
		if chunk.Token != "" {
			b.WriteString(chunk.Token)
			select {
			case out <- MemoryAnswer{Question: question, Text: b.String(), RelevantSources: citations, StreamState: StreamStateAppend}:
			case <-ctx.Done():
				return
			}
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
	}
	if usage == nil {
		usage = &llm.TokenUsage{PromptTokens: promptTokens, CompletionTokens: c.countTokens(b.String())}
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	text := strings.TrimSpace(b.String())

	// Step 8: empty or equal-modulo-punctuation to the empty-answer
	// sentinel means no grounded answer was produced.
	if text == "" || equalModuloPunctuation(text, opts.EmptyAnswerText) {
		select {
		case out <- MemoryAnswer{Question: question, NoResult: true, NoResultReason: string(ReasonNoFacts), TokenUsage: usage, StreamState: StreamStateReset}:
		case <-ctx.Done():
		}
		return
	}

	// Step 9: content moderation gate.
	if c.moderator != nil {
		result, err := c.moderator.Moderate(ctx, text)
		if err != nil {
			c.logger.Warn("moderation check failed, treating as unmoderated", "error", err)
		} else if result.Flagged {
			c.logger.Warn("answer moderated", "categories", result.Categories)
			select {
			case out <- MemoryAnswer{Question: question, NoResult: true, NoResultReason: string(ReasonUnsafeAnswer), Text: ModeratedAnswerText, TokenUsage: usage, StreamState: StreamStateLast}:
			case <-ctx.Done():
			}
			return
		}
	}

	select {
	case out <- MemoryAnswer{Question: question, Text: text, RelevantSources: citations, TokenUsage: usage, StreamState: StreamStateLast}:
	case <-ctx.Done():
	}
}

// packFacts renders the fact template for each result in descending
// relevance order, deduplicating by content hash, and stops (not
// skip-and-continue) the first time a fact would overflow budget (spec.md
// §4.10 step 4). Returns the facts string, the Citations assembled from
// facts that fit, and whether at least one fact fit.
func (c *Client) packFacts(records []vectorstore.ScoredRecord, opts AskOptions, budget int) (string, []pipeline.Citation, bool) {
	var b strings.Builder
	seen := make(map[string]bool)
	used := 0

	type kept struct {
		record vectorstore.ScoredRecord
		text   string
		source string
	}
	var keptFacts []kept

	for _, r := range records {
		text, _ := r.Record.Payload["text"].(string)
		sourceName, _ := r.Record.Payload["file_name"].(string)
		if text == "" {
			continue
		}
		h := contentHash(text)
		if seen[h] {
			continue
		}

		fact := prompts.Fill(opts.FactTemplate, map[string]string{
			"content":   text,
			"source":    sourceName,
			"relevance": fmt.Sprintf("%.4f", r.Score),
			"recordId":  r.Record.ID,
		})
		factTokens := c.countTokens(fact)
		if used+factTokens > budget {
			break
		}
		seen[h] = true
		used += factTokens
		b.WriteString(fact)
		keptFacts = append(keptFacts, kept{record: r, text: text, source: sourceName})
	}

	if len(keptFacts) == 0 {
		return "", nil, false
	}

	keptRecords := make([]vectorstore.ScoredRecord, len(keptFacts))
	for i, k := range keptFacts {
		keptRecords[i] = k.record
	}
	citations := groupIntoCitations(keptRecords)
	return b.String(), citations, true
}

func noFactsChannel(question string) <-chan MemoryAnswer {
	ch := make(chan MemoryAnswer, 1)
	ch <- MemoryAnswer{Question: question, NoResult: true, NoResultReason: string(ReasonNoFacts), StreamState: StreamStateReset}
	close(ch)
	return ch
}

// ensureTrailingQuestionMark appends "?" if question does not already end
// with sentence-ending punctuation (spec.md §4.10 step 6: "question,
// trailing ? ensured").
func ensureTrailingQuestionMark(question string) string {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return trimmed
	}
	switch trimmed[len(trimmed)-1] {
	case '?', '.', '!':
		return trimmed
	}
	return trimmed + "?"
}

// equalModuloPunctuation compares a and b ignoring case, surrounding
// whitespace, and trailing punctuation (spec.md §4.10 step 8: "equal
// modulo punctuation to the empty-answer sentinel").
func equalModuloPunctuation(a, b string) bool {
	return stripPunctuation(a) == stripPunctuation(b)
}

func stripPunctuation(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".!? ")
}
