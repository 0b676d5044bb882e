package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kestrelai/memoria/mime"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/textsplitter"
)

// Partition defaults, per spec.md §4.4.
const (
	DefaultMaxTokensPerLine      = 300
	DefaultMaxTokensPerParagraph = 1000
	DefaultOverlappingTokens     = 100
)

// Partition splits every ExtractedText artifact into paragraphs, using a
// markdown-aware splitter (non-overlapping paragraphs) for
// text/plain-markdown and a generic token splitter (line-bounded,
// overlap-joined paragraphs) otherwise (spec.md §4.4).
type Partition struct {
	io                    orchestrator.IO
	tokenizer             textsplitter.Tokenizer
	maxTokensPerLine      int
	maxTokensPerParagraph int
	overlappingTokens     int
}

// NewPartition creates a Partition handler. Zero values for the size
// arguments fall back to spec.md §4.4's defaults.
func NewPartition(io orchestrator.IO, tokenizer textsplitter.Tokenizer, maxTokensPerLine, maxTokensPerParagraph, overlappingTokens int) *Partition {
	if tokenizer == nil {
		tokenizer = textsplitter.NewSimpleTokenizer()
	}
	if maxTokensPerLine <= 0 {
		maxTokensPerLine = DefaultMaxTokensPerLine
	}
	if maxTokensPerParagraph <= 0 {
		maxTokensPerParagraph = DefaultMaxTokensPerParagraph
	}
	if overlappingTokens <= 0 {
		overlappingTokens = DefaultOverlappingTokens
	}
	return &Partition{
		io:                    io,
		tokenizer:             tokenizer,
		maxTokensPerLine:      maxTokensPerLine,
		maxTokensPerParagraph: maxTokensPerParagraph,
		overlappingTokens:     overlappingTokens,
	}
}

func (h *Partition) StepName() string { return orchestrator.StepPartition }

func (h *Partition) Invoke(ctx context.Context, p *pipeline.DataPipeline) (*pipeline.DataPipeline, error) {
	for _, file := range p.Files {
		for _, artifact := range file.GeneratedFiles {
			if artifact.ArtifactType != pipeline.ArtifactExtractedText {
				continue
			}
			if artifact.Processed(h.StepName()) {
				continue
			}
			if err := h.partitionOne(ctx, p, file, artifact); err != nil {
				return p, fmt.Errorf("partition: %s: %w", artifact.Name, err)
			}
			artifact.MarkProcessed(h.StepName())
		}
	}
	return p, nil
}

func (h *Partition) partitionOne(ctx context.Context, p *pipeline.DataPipeline, file *pipeline.FileDescriptor, extracted *pipeline.GeneratedFileDescriptor) error {
	text, err := h.io.ReadTextFile(ctx, p, extracted.Name)
	if err != nil {
		return err
	}

	paragraphs := h.splitIntoParagraphs(text, extracted.MimeType == mime.TypeMarkdown)

	cursor := 0
	n := 1
	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		section := sectionNumberAt(text, paragraph, &cursor)
		artifactName := fmt.Sprintf("%s.partition.%d.txt", file.Name, n)
		n++

		if err := h.io.WriteTextFile(ctx, p, artifactName, paragraph); err != nil {
			return fmt.Errorf("write %s: %w", artifactName, err)
		}

		sum := sha256.Sum256([]byte(paragraph))
		partition := pipeline.NewGeneratedFileDescriptor(artifactName, int64(len(paragraph)), mime.TypeText, hex.EncodeToString(sum[:]), file.ID, pipeline.ArtifactTextPartition)
		partition.SectionNumber = section
		partition.MarkProcessed(h.StepName())
		file.GeneratedFiles[artifactName] = partition
	}
	return nil
}

// splitIntoParagraphs applies spec.md §4.4's two-stage split for plain
// text: lines bounded by maxTokensPerLine, then paragraphs bounded by
// maxTokensPerParagraph with overlap. When isMarkdown it runs only the
// MarkdownSplitter bounded by maxTokensPerParagraph: no line stage, and
// the resulting paragraphs do not overlap.
func (h *Partition) splitIntoParagraphs(text string, isMarkdown bool) []string {
	if isMarkdown {
		splitter := textsplitter.NewMarkdownSplitter(h.maxTokensPerParagraph, h.overlappingTokens).WithTokenizer(h.tokenizer)
		return splitter.SplitText(text)
	}

	lineSplitter := textsplitter.NewTokenTextSplitterWithTokenizer(h.maxTokensPerLine, 0, h.tokenizer).WithSeparator(" ")
	lines := lineSplitter.SplitText(text)

	paragraphSplitter := textsplitter.NewTokenTextSplitterWithTokenizer(h.maxTokensPerParagraph, h.overlappingTokens, h.tokenizer).WithSeparator("\n")
	return paragraphSplitter.SplitText(strings.Join(lines, "\n"))
}

// sectionNumberAt locates paragraph's anchor (its first word) in fullText
// starting at *cursor, and returns 1 + the number of section separators
// preceding it. *cursor advances past the match so repeated or
// overlapping paragraphs still resolve to non-decreasing section numbers.
func sectionNumberAt(fullText, paragraph string, cursor *int) int {
	anchor := strings.TrimSpace(paragraph)
	if sp := strings.IndexAny(anchor, " \n\t"); sp > 0 {
		anchor = anchor[:sp]
	}
	if anchor == "" {
		return strings.Count(fullText[:*cursor], sectionSeparator) + 1
	}

	start := *cursor
	if start > len(fullText) {
		start = len(fullText)
	}
	idx := strings.Index(fullText[start:], anchor)
	if idx < 0 {
		return strings.Count(fullText[:*cursor], sectionSeparator) + 1
	}
	pos := start + idx
	*cursor = pos + len(anchor)
	return strings.Count(fullText[:pos], sectionSeparator) + 1
}

var _ orchestrator.Handler = (*Partition)(nil)
