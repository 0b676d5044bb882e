package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/mime"
	"github.com/kestrelai/memoria/pipeline"
)

func TestPartitionSplitsExtractedText(t *testing.T) {
	io, _ := newTestEnv(t)
	words := make([]string, 30)
	for i := range words {
		words[i] = fmt.Sprintf("word%02d", i)
	}
	content := strings.Join(words, " ")

	p := newPipelineWithFile(t, io, "doc.txt", content)
	addGeneratedText(t, io, p, p.Files[0], "doc.txt.extract.txt", content, pipeline.ArtifactExtractedText)

	h := NewPartition(io, nil, 5, 8, 2)
	_, err := h.Invoke(context.Background(), p)
	require.NoError(t, err)

	partitions := p.GeneratedFilesByType(pipeline.ArtifactTextPartition)
	require.GreaterOrEqual(t, len(partitions), 2)

	var joined strings.Builder
	for _, part := range partitions {
		assert.Equal(t, pipeline.ArtifactTextPartition, part.ArtifactType)
		assert.Equal(t, mime.TypeText, part.MimeType)
		assert.Equal(t, p.Files[0].ID, part.ParentID)
		assert.NotEmpty(t, part.ContentSHA256)
		assert.True(t, part.Processed(h.StepName()))
		assert.Contains(t, part.Name, "doc.txt.partition.")

		text, err := io.ReadTextFile(context.Background(), p, part.Name)
		require.NoError(t, err)
		joined.WriteString(text)
		joined.WriteString(" ")
	}

	// Ignoring overlap, no word of the original may go missing.
	for _, w := range words {
		assert.Contains(t, joined.String(), w)
	}
}

func TestPartitionIsIdempotent(t *testing.T) {
	io, _ := newTestEnv(t)
	content := strings.Repeat("alpha bravo charlie delta echo ", 10)
	p := newPipelineWithFile(t, io, "doc.txt", content)
	addGeneratedText(t, io, p, p.Files[0], "doc.txt.extract.txt", content, pipeline.ArtifactExtractedText)

	h := NewPartition(io, nil, 5, 8, 2)
	_, err := h.Invoke(context.Background(), p)
	require.NoError(t, err)
	count := len(p.GeneratedFilesByType(pipeline.ArtifactTextPartition))

	_, err = h.Invoke(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, p.GeneratedFilesByType(pipeline.ArtifactTextPartition), count)
}

func TestPartitionPreservesSectionNumbers(t *testing.T) {
	io, _ := newTestEnv(t)
	// Two sections joined the way the extract handler joins PDF pages.
	content := "alpha bravo charlie\fdelta echo foxtrot"
	p := newPipelineWithFile(t, io, "doc.pdf", content)
	addGeneratedText(t, io, p, p.Files[0], "doc.pdf.extract.txt", content, pipeline.ArtifactExtractedText)

	h := NewPartition(io, nil, 3, 3, 1)
	_, err := h.Invoke(context.Background(), p)
	require.NoError(t, err)

	partitions := p.GeneratedFilesByType(pipeline.ArtifactTextPartition)
	require.GreaterOrEqual(t, len(partitions), 2)

	sections := make(map[int]bool)
	for _, part := range partitions {
		sections[part.SectionNumber] = true
	}
	assert.True(t, sections[1], "partitions from the first page carry section 1")
	assert.True(t, sections[2], "partitions from the second page carry section 2")
}

func TestPartitionMarkdownRespectsHeaders(t *testing.T) {
	io, _ := newTestEnv(t)
	content := "# First\n\nalpha bravo charlie delta\n\n# Second\n\necho foxtrot golf hotel"
	p := newPipelineWithFile(t, io, "notes.md", content)

	require.NoError(t, io.WriteTextFile(context.Background(), p, "notes.md.extract.txt", content))
	g := pipeline.NewGeneratedFileDescriptor("notes.md.extract.txt", int64(len(content)), mime.TypeMarkdown, "", p.Files[0].ID, pipeline.ArtifactExtractedText)
	p.Files[0].GeneratedFiles[g.Name] = g

	h := NewPartition(io, nil, 5, 6, 1)
	_, err := h.Invoke(context.Background(), p)
	require.NoError(t, err)

	partitions := p.GeneratedFilesByType(pipeline.ArtifactTextPartition)
	require.NotEmpty(t, partitions)
	for _, part := range partitions {
		text, err := io.ReadTextFile(context.Background(), p, part.Name)
		require.NoError(t, err)
		// The markdown splitter never mixes content from both headers in
		// one partition at these sizes.
		assert.False(t, strings.Contains(text, "alpha") && strings.Contains(text, "hotel"), text)
	}
}
