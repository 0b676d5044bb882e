// Package memcore wires memoria's collaborators into a single Core struct,
// replacing the teacher's settings package — a package-level, mutex-guarded
// service locator (settings/settings.go's globalLLM/globalEmbed/GetLLM/
// SetLLM) — with explicit construction, per spec.md §9 DESIGN NOTES:
// "Runtime service-locator/DI... map to explicit construction — a Core
// struct wires concrete collaborators once; handlers receive collaborators
// by parameter, not by ambient lookup". Config mirrors the teacher's
// functional-option defaulting style (zero-value fields get sane defaults)
// seen throughout rag.RAGConfig / NewRAGSystem-shaped constructors.
package memcore

import (
	"log/slog"

	"github.com/kestrelai/memoria/embedding"
	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/moderation"
	"github.com/kestrelai/memoria/queue"
	"github.com/kestrelai/memoria/vectorstore"
)

// Config configures a Core. newConfig sets the content store dir, embedder
// name, summary budget and logger defaults; other zero-value fields get
// the defaults of the handler or client they are passed to.
type Config struct {
	ContentStoreDir string

	VectorStores []vectorstore.Store

	Embedder     embedding.Provider
	EmbedderName string

	Generator llm.TextGenerator
	Moderator moderation.Moderator

	// QueueAdapter selects queue-backed orchestration when non-nil; a nil
	// value selects in-process synchronous orchestration (spec.md
	// §4.1.a/§4.1.b).
	QueueAdapter queue.Adapter

	MaxTokensPerLine      int
	MaxTokensPerParagraph int
	OverlappingTokens     int
	SummaryMaxTokens      int

	Logger       *slog.Logger
	SensitiveLog bool
}

// Option mutates a Config during New.
type Option func(*Config)

func WithContentStoreDir(dir string) Option {
	return func(c *Config) { c.ContentStoreDir = dir }
}

func WithVectorStores(stores ...vectorstore.Store) Option {
	return func(c *Config) { c.VectorStores = stores }
}

func WithEmbedder(name string, e embedding.Provider) Option {
	return func(c *Config) { c.EmbedderName = name; c.Embedder = e }
}

func WithGenerator(g llm.TextGenerator) Option {
	return func(c *Config) { c.Generator = g }
}

func WithModerator(m moderation.Moderator) Option {
	return func(c *Config) { c.Moderator = m }
}

func WithQueueAdapter(q queue.Adapter) Option {
	return func(c *Config) { c.QueueAdapter = q }
}

func WithPartitionSizes(maxTokensPerLine, maxTokensPerParagraph, overlappingTokens int) Option {
	return func(c *Config) {
		c.MaxTokensPerLine = maxTokensPerLine
		c.MaxTokensPerParagraph = maxTokensPerParagraph
		c.OverlappingTokens = overlappingTokens
	}
}

func WithSummaryMaxTokens(n int) Option {
	return func(c *Config) { c.SummaryMaxTokens = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithSensitiveLog controls whether prompt/fact text is logged (spec.md §9:
// "Ambient logger... sensitive-data logging is a boolean gate on the
// handle").
func WithSensitiveLog(enabled bool) Option {
	return func(c *Config) { c.SensitiveLog = enabled }
}

// DefaultSummaryMaxTokens is the summary budget Core passes to
// handlers.NewSummarize when none is configured; it takes the place of
// handlers.DefaultSummaryMaxTokens (1000) for a Core.
const DefaultSummaryMaxTokens = 600

func newConfig(opts ...Option) *Config {
	cfg := &Config{
		ContentStoreDir:  "./data",
		EmbedderName:     "openai",
		SummaryMaxTokens: DefaultSummaryMaxTokens,
		Logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
