package textsplitter

import (
	"fmt"
	"strings"

	"github.com/kestrelai/memoria/validation"
)

// TokenTextSplitter cuts text into chunks bounded by token count rather
// than bytes. The partition handler runs it twice per file — once with a
// space separator to bound lines, once with a newline separator to bound
// paragraphs with overlap — and the summarize handler uses it to cut
// paragraph-sized inputs for iterative summarization.
type TokenTextSplitter struct {
	// ChunkSize is the maximum number of tokens per chunk.
	ChunkSize int
	// ChunkOverlap is the number of tokens repeated between adjacent
	// chunks.
	ChunkOverlap int
	// Tokenizer counts tokens. Defaults to SimpleTokenizer.
	Tokenizer Tokenizer
	// Separator cuts text into pieces before chunks are assembled.
	// Defaults to " ".
	Separator string
	// KeepSeparator reattaches the separator to the pieces instead of
	// discarding it.
	KeepSeparator bool
}

// NewTokenTextSplitter creates a TokenTextSplitter with the default
// tokenizer and separator.
func NewTokenTextSplitter(chunkSize, chunkOverlap int) *TokenTextSplitter {
	return NewTokenTextSplitterWithTokenizer(chunkSize, chunkOverlap, nil)
}

// NewTokenTextSplitterWithTokenizer creates a TokenTextSplitter counting
// tokens with the given tokenizer. A nil tokenizer falls back to
// SimpleTokenizer.
func NewTokenTextSplitterWithTokenizer(chunkSize, chunkOverlap int, tokenizer Tokenizer) *TokenTextSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if tokenizer == nil {
		tokenizer = NewSimpleTokenizer()
	}
	return &TokenTextSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Tokenizer:    tokenizer,
		Separator:    " ",
	}
}

// NewTokenTextSplitterWithValidation creates a TokenTextSplitter,
// returning an error if chunkSize/chunkOverlap are invalid.
func NewTokenTextSplitterWithValidation(chunkSize, chunkOverlap int, tokenizer Tokenizer) (*TokenTextSplitter, error) {
	if err := validation.ValidateChunkParams(chunkSize, chunkOverlap); err != nil {
		return nil, fmt.Errorf("invalid token splitter config: %w", err)
	}
	if tokenizer == nil {
		tokenizer = NewSimpleTokenizer()
	}
	return &TokenTextSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Tokenizer:    tokenizer,
		Separator:    " ",
	}, nil
}

// WithSeparator sets a custom separator.
func (s *TokenTextSplitter) WithSeparator(sep string) *TokenTextSplitter {
	s.Separator = sep
	return s
}

// WithKeepSeparator sets whether separators are kept in the output.
func (s *TokenTextSplitter) WithKeepSeparator(keep bool) *TokenTextSplitter {
	s.KeepSeparator = keep
	return s
}

// Validate validates the current splitter configuration.
func (s *TokenTextSplitter) Validate() error {
	return validation.ValidateTokenSplitterConfig(validation.TokenSplitterConfig{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
		Separator:    s.Separator,
	})
}

// SplitText splits text into token-bounded chunks.
func (s *TokenTextSplitter) SplitText(text string) []string {
	if text == "" {
		return []string{}
	}
	return s.trimChunks(s.assemble(s.split(text)))
}

// SplitTextMetadataAware splits text with the chunk budget reduced by the
// token cost of metadata that will ride along with every chunk.
func (s *TokenTextSplitter) SplitTextMetadataAware(text string, metadata string) []string {
	effective := s.ChunkSize - s.countTokens(metadata)
	if effective < 1 {
		effective = 1
	}
	reduced := *s
	reduced.ChunkSize = effective
	return reduced.SplitText(text)
}

// split cuts text into separator-delimited pieces, dropping empties.
func (s *TokenTextSplitter) split(text string) []string {
	if s.Separator == "" {
		return []string{text}
	}
	if s.KeepSeparator {
		return SplitTextKeepSeparator(text, s.Separator)
	}
	var pieces []string
	for _, p := range strings.Split(text, s.Separator) {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// assemble greedily packs pieces into chunks of at most ChunkSize tokens,
// carrying ChunkOverlap tokens of tail into each new chunk. A single
// piece larger than the whole budget is sliced on its own.
func (s *TokenTextSplitter) assemble(pieces []string) []string {
	sep := s.Separator
	if s.KeepSeparator {
		sep = ""
	}
	sepTokens := s.countTokens(sep)

	var chunks []string
	var current []string
	currentTokens := 0

	for _, piece := range pieces {
		pieceTokens := s.countTokens(piece)

		if pieceTokens > s.ChunkSize {
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, sep))
				current, currentTokens = nil, 0
			}
			chunks = append(chunks, s.sliceOversized(piece)...)
			continue
		}

		next := currentTokens + pieceTokens
		if len(current) > 0 {
			next += sepTokens
		}
		if next > s.ChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, sep))
			current, currentTokens = s.carryOverlap(current, sep)
		}

		current = append(current, piece)
		currentTokens = s.countTokens(strings.Join(current, sep))
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}
	return chunks
}

// carryOverlap walks backwards over the just-flushed chunk collecting up
// to ChunkOverlap tokens of tail pieces to seed the next chunk with.
func (s *TokenTextSplitter) carryOverlap(chunk []string, sep string) ([]string, int) {
	if s.ChunkOverlap <= 0 {
		return nil, 0
	}
	var kept []string
	tokens := 0
	for i := len(chunk) - 1; i >= 0; i-- {
		pieceTokens := s.countTokens(chunk[i])
		if tokens+pieceTokens > s.ChunkOverlap {
			break
		}
		kept = append([]string{chunk[i]}, kept...)
		tokens += pieceTokens
		if len(kept) > 1 {
			tokens += s.countTokens(sep)
		}
	}
	return kept, tokens
}

// sliceOversized cuts one piece that exceeds the chunk budget on its own.
// Token positions are mapped back to byte offsets proportionally; exact
// reconstruction would need a tokenizer that reports offsets, which
// neither Tokenizer implementation does.
func (s *TokenTextSplitter) sliceOversized(piece string) []string {
	tokens := s.Tokenizer.Encode(piece)
	var chunks []string

	for i := 0; i < len(tokens); i += s.ChunkSize - s.ChunkOverlap {
		end := i + s.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		lo := int(float64(i) / float64(len(tokens)) * float64(len(piece)))
		hi := int(float64(end) / float64(len(tokens)) * float64(len(piece)))
		if hi > len(piece) {
			hi = len(piece)
		}
		if chunk := strings.TrimSpace(piece[lo:hi]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(tokens) {
			break
		}
	}
	return chunks
}

// trimChunks strips surrounding whitespace and drops chunks that end up
// empty after trimming.
func (s *TokenTextSplitter) trimChunks(chunks []string) []string {
	var out []string
	for _, chunk := range chunks {
		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *TokenTextSplitter) countTokens(text string) int {
	return len(s.Tokenizer.Encode(text))
}
