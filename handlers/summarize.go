package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/mime"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/prompts"
	"github.com/kestrelai/memoria/textsplitter"
)

// DefaultSummaryMaxTokens bounds the final summary length when the
// handler's constructor is given zero.
const DefaultSummaryMaxTokens = 1000

// minSummarizableTokens is spec.md §4.5's "content length in tokens < 50"
// skip threshold.
const minSummarizableTokens = 50

// ErrSummaryNotShrinking is returned when iterative summarization fails
// to reduce token count after its first pass, guarding against a runaway
// LLM that never converges (spec.md §4.5).
var ErrSummaryNotShrinking = fmt.Errorf("summarize: output did not shrink after first iteration")

// Summarize produces a Summary artifact (pipeline.ArtifactSummary; not
// ArtifactSyntheticData) per extracted text/markdown file by iteratively
// summarizing paragraph-sized chunks until the whole text fits within
// SummaryMaxTokens (spec.md §4.5).
type Summarize struct {
	io              orchestrator.IO
	generator       llm.TextGenerator
	tokenizer       textsplitter.Tokenizer
	summaryMaxTokens int
	promptTemplate  string
}

// NewSummarize creates a Summarize handler. A zero summaryMaxTokens falls
// back to DefaultSummaryMaxTokens; an empty promptTemplate falls back to
// prompts.DefaultSummaryPromptTmpl.
func NewSummarize(io orchestrator.IO, generator llm.TextGenerator, tokenizer textsplitter.Tokenizer, summaryMaxTokens int, promptTemplate string) *Summarize {
	if tokenizer == nil {
		tokenizer = textsplitter.NewSimpleTokenizer()
	}
	if summaryMaxTokens <= 0 {
		summaryMaxTokens = DefaultSummaryMaxTokens
	}
	if promptTemplate == "" {
		promptTemplate = prompts.DefaultSummaryPromptTmpl
	}
	return &Summarize{
		io:               io,
		generator:        generator,
		tokenizer:        tokenizer,
		summaryMaxTokens: summaryMaxTokens,
		promptTemplate:   promptTemplate,
	}
}

func (h *Summarize) StepName() string { return orchestrator.StepSummarize }

func (h *Summarize) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	for _, file := range p.Files {
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType != pipeline.ArtifactExtractedText {
				continue
			}
			if artifact.Processed(h.StepName()) {
				continue
			}
			if err := h.summarizeOne(ctx, p, file, artifact); err != nil {
				return p, fmt.Errorf("summarize: %s: %w", artifact.Name, err)
			}
			artifact.MarkProcessed(h.StepName())
		}
	}
	return p, nil
}

func (h *Summarize) summarizeOne(ctx context.Context, p *pipeline.DataPipeline, file *pipeline.FileDescriptor, extracted *pipeline.GeneratedFileDescriptor) error {
	text, err := h.io.ReadTextFile(ctx, p, extracted.Name)
	if err != nil {
		return err
	}

	summary := text
	if h.countTokens(text) >= minSummarizableTokens {
		summary, err = h.iterate(ctx, text)
		if err != nil {
			return err
		}
	}

	artifactName := extracted.Name + ".summary.txt"
	if err := h.io.WriteTextFile(ctx, p, artifactName, summary); err != nil {
		return fmt.Errorf("write %s: %w", artifactName, err)
	}

	out := pipeline.NewGeneratedFileDescriptor(artifactName, int64(len(summary)), mime.TypeText, "", file.ID, pipeline.ArtifactSummary)
	out.SectionNumber = extracted.SectionNumber
	out.MarkProcessed(h.StepName())
	file.GeneratedFiles[artifactName] = out
	return nil
}

func (h *Summarize) iterate(ctx context.Context, text string) (string, error) {
	current := text
	prevTokens := h.countTokens(current)
	maxParagraphTokens := h.summaryMaxTokens / 2
	if maxParagraphTokens < 1 {
		maxParagraphTokens = 1
	}

	for iteration := 1; h.countTokens(current) > h.summaryMaxTokens; iteration++ {
		splitter := textsplitter.NewTokenTextSplitterWithTokenizer(maxParagraphTokens, maxParagraphTokens/4, h.tokenizer)
		paragraphs := splitter.SplitText(current)

		var next strings.Builder
		for _, paragraph := range paragraphs {
			summarized, err := h.summarizeParagraph(ctx, paragraph)
			if err != nil {
				return "", err
			}
			next.WriteString(summarized)
			next.WriteString("\n")
		}

		nextText := next.String()
		nextTokens := h.countTokens(nextText)
		if iteration > 1 && nextTokens >= prevTokens {
			return "", ErrSummaryNotShrinking
		}
		prevTokens = nextTokens
		current = nextText
	}
	return current, nil
}

func (h *Summarize) summarizeParagraph(ctx context.Context, paragraph string) (string, error) {
	prompt := prompts.Fill(h.promptTemplate, map[string]string{"input": paragraph})

	chunks, err := h.generator.GenerateStream(ctx, prompt)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for chunk := range chunks {
		buf.WriteString(chunk.Token)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (h *Summarize) countTokens(text string) int {
	return len(h.tokenizer.Encode(text))
}

var _ orchestrator.Handler = (*Summarize)(nil)
