package memcore

import (
	"fmt"

	"github.com/kestrelai/memoria/contentstore"
	"github.com/kestrelai/memoria/extract"
	"github.com/kestrelai/memoria/handlers"
	"github.com/kestrelai/memoria/orchestrator"
	"github.com/kestrelai/memoria/search"
	"github.com/kestrelai/memoria/textsplitter"
)

// Core holds every wired collaborator memoria's HTTP surface and CLI drive:
// the Orchestrator (ingestion/deletion) and the SearchClient (retrieval),
// both built once over the same ContentStore/VectorStore set. This is the
// explicit-construction replacement for the teacher's settings
// service-locator (spec.md §9 DESIGN NOTES; see package doc).
type Core struct {
	Config *Config

	Store        contentstore.ContentStore
	Orchestrator *orchestrator.Orchestrator
	Search       *search.Client
}

// New wires a Core from cfg. Embedder, Generator and at least one
// VectorStore are required (New returns an error otherwise); a nil
// QueueAdapter falls back to in-process synchronous orchestration.
func New(opts ...Option) (*Core, error) {
	cfg := newConfig(opts...)
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("memcore: Embedder is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("memcore: Generator is required")
	}
	if len(cfg.VectorStores) == 0 {
		return nil, fmt.Errorf("memcore: at least one VectorStore is required")
	}

	store, err := contentstore.NewDiskStore(cfg.ContentStoreDir)
	if err != nil {
		return nil, fmt.Errorf("memcore: open content store: %w", err)
	}

	makeRunner := orchestrator.InProcess()
	if cfg.QueueAdapter != nil {
		makeRunner = orchestrator.QueueBacked(cfg.QueueAdapter)
	}
	o := orchestrator.New(store, cfg.Logger, makeRunner)
	io := o.IO()

	registry := extract.DefaultRegistry()
	tokenizer := tokenizerFor(cfg)

	o.AttachHandler(handlers.NewExtract(registry, io))
	o.AttachHandler(handlers.NewPartition(io, tokenizer, cfg.MaxTokensPerLine, cfg.MaxTokensPerParagraph, cfg.OverlappingTokens))
	o.AttachHandler(handlers.NewSummarize(io, cfg.Generator, tokenizer, cfg.SummaryMaxTokens, ""))
	o.AttachHandler(handlers.NewEmbed(io, cfg.Embedder, cfg.EmbedderName))
	o.AttachHandler(handlers.NewSaveRecords(io, cfg.VectorStores))
	o.AttachHandler(handlers.NewDeleteDocument(store, cfg.VectorStores))
	o.AttachHandler(handlers.NewDeleteIndex(store, cfg.VectorStores))

	searchOpts := []search.Option{search.WithLogger(cfg.Logger)}
	if cfg.Moderator != nil {
		searchOpts = append(searchOpts, search.WithModerator(cfg.Moderator))
	}
	// Retrieval only ever needs one VectorStore to query against; the
	// first configured store is the primary search target, mirroring
	// save-records fanning writes out to every store but search reading
	// from one of them (spec.md §4.10 reads a single VectorStore; §4.7
	// writes to "every configured VectorStore").
	sc := search.New(cfg.VectorStores[0], cfg.Embedder, cfg.Generator, tokenizer, searchOpts...)

	return &Core{
		Config:       cfg,
		Store:        store,
		Orchestrator: o,
		Search:       sc,
	}, nil
}

func tokenizerFor(cfg *Config) textsplitter.Tokenizer {
	if cfg.Embedder == nil {
		return textsplitter.NewSimpleTokenizer()
	}
	name := cfg.Embedder.Info().TokenizerName
	if name == "" {
		return textsplitter.NewSimpleTokenizer()
	}
	tk, err := textsplitter.NewTikTokenTokenizer(cfg.Embedder.Info().ModelName)
	if err != nil {
		return textsplitter.NewSimpleTokenizer()
	}
	return tk
}

// NewInProcessForTest wires a Core suitable for package-external tests: a
// disk content store rooted at dir, in-process orchestration unless the
// caller passes WithQueueAdapter, and whatever stores/providers the caller
// supplies.
// Grounded on the teacher's test helper pattern of a package-level
// constructor with sane test defaults (c.f. embedding.NewMockProvider).
func NewInProcessForTest(dir string, opts ...Option) (*Core, error) {
	base := []Option{WithContentStoreDir(dir)}
	return New(append(base, opts...)...)
}
