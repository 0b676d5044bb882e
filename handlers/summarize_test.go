package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/textsplitter"
)

func TestSummarizeShortTextPassesThrough(t *testing.T) {
	io, _ := newTestEnv(t)
	content := "tiny note"
	p := newPipelineWithFile(t, io, "doc.txt", content)
	addGeneratedText(t, io, p, p.Files[0], "doc.txt.extract.txt", content, pipeline.ArtifactExtractedText)

	// The generator would answer "SUMMARY", but content under the token
	// threshold must be emitted as-is without calling it.
	h := NewSummarize(io, llm.NewMockTextGenerator("SUMMARY"), textsplitter.NewSimpleTokenizer(), 20, "")
	_, err := h.Invoke(context.Background(), p)
	require.NoError(t, err)

	artifact := p.Files[0].GeneratedFiles["doc.txt.extract.txt.summary.txt"]
	require.NotNil(t, artifact)
	assert.Equal(t, pipeline.ArtifactSummary, artifact.ArtifactType)

	text, err := io.ReadTextFile(context.Background(), p, artifact.Name)
	require.NoError(t, err)
	assert.Equal(t, content, text)
}

func TestSummarizeIteratesUntilUnderBudget(t *testing.T) {
	io, _ := newTestEnv(t)
	content := strings.TrimSpace(strings.Repeat("alpha bravo charlie delta echo ", 12))
	p := newPipelineWithFile(t, io, "doc.txt", content)
	addGeneratedText(t, io, p, p.Files[0], "doc.txt.extract.txt", content, pipeline.ArtifactExtractedText)

	tokenizer := textsplitter.NewSimpleTokenizer()
	h := NewSummarize(io, llm.NewMockTextGenerator("short summary"), tokenizer, 20, "")
	_, err := h.Invoke(context.Background(), p)
	require.NoError(t, err)

	artifact := p.Files[0].GeneratedFiles["doc.txt.extract.txt.summary.txt"]
	require.NotNil(t, artifact)
	assert.True(t, artifact.Processed(h.StepName()))

	text, err := io.ReadTextFile(context.Background(), p, artifact.Name)
	require.NoError(t, err)
	assert.Contains(t, text, "short summary")
	assert.LessOrEqual(t, len(tokenizer.Encode(text)), 20)
}

func TestSummarizeFailsWhenOutputNeverShrinks(t *testing.T) {
	io, _ := newTestEnv(t)
	content := strings.TrimSpace(strings.Repeat("alpha bravo charlie delta echo ", 12))
	p := newPipelineWithFile(t, io, "doc.txt", content)
	addGeneratedText(t, io, p, p.Files[0], "doc.txt.extract.txt", content, pipeline.ArtifactExtractedText)

	// A generator that answers with more text than it was given can never
	// converge; the step must fail rather than loop.
	runaway := llm.NewMockTextGenerator(strings.TrimSpace(strings.Repeat("word ", 30)))
	h := NewSummarize(io, runaway, textsplitter.NewSimpleTokenizer(), 20, "")
	_, err := h.Invoke(context.Background(), p)
	require.ErrorIs(t, err, ErrSummaryNotShrinking)

	assert.Nil(t, p.Files[0].GeneratedFiles["doc.txt.extract.txt.summary.txt"])
}

func TestSummarizeIsIdempotent(t *testing.T) {
	io, _ := newTestEnv(t)
	content := "tiny note"
	p := newPipelineWithFile(t, io, "doc.txt", content)
	addGeneratedText(t, io, p, p.Files[0], "doc.txt.extract.txt", content, pipeline.ArtifactExtractedText)

	h := NewSummarize(io, llm.NewMockTextGenerator("SUMMARY"), nil, 20, "")
	_, err := h.Invoke(context.Background(), p)
	require.NoError(t, err)
	_, err = h.Invoke(context.Background(), p)
	require.NoError(t, err)

	count := 0
	for _, g := range p.Files[0].GeneratedFiles {
		if g.ArtifactType == pipeline.ArtifactSummary {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
