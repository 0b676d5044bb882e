package validation

import (
	"fmt"
)

// TokenSplitterConfig holds configuration for TokenTextSplitter validation.
type TokenSplitterConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

// ValidateTokenSplitterConfig validates TokenTextSplitter configuration.
func ValidateTokenSplitterConfig(cfg TokenSplitterConfig) error {
	v := NewValidator()

	v.RequirePositive(cfg.ChunkSize, "chunk_size")
	v.RequireNonNegative(cfg.ChunkOverlap, "chunk_overlap")

	if cfg.ChunkOverlap >= cfg.ChunkSize && cfg.ChunkSize > 0 {
		v.AddError("chunk_overlap",
			fmt.Sprintf("must be less than chunk_size (%d)", cfg.ChunkSize),
			cfg.ChunkOverlap)
	}

	return v.Error()
}

// MarkdownSplitterConfig holds configuration for MarkdownSplitter validation.
type MarkdownSplitterConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// ValidateMarkdownSplitterConfig validates MarkdownSplitter configuration.
func ValidateMarkdownSplitterConfig(cfg MarkdownSplitterConfig) error {
	v := NewValidator()

	v.RequirePositive(cfg.ChunkSize, "chunk_size")
	v.RequireNonNegative(cfg.ChunkOverlap, "chunk_overlap")

	if cfg.ChunkOverlap >= cfg.ChunkSize && cfg.ChunkSize > 0 {
		v.AddError("chunk_overlap",
			fmt.Sprintf("must be less than chunk_size (%d)", cfg.ChunkSize),
			cfg.ChunkOverlap)
	}

	return v.Error()
}

