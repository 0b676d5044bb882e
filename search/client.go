package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/kestrelai/memoria/embedding"
	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/moderation"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/prompts"
	"github.com/kestrelai/memoria/textsplitter"
	"github.com/kestrelai/memoria/vectorstore"
)

// Defaults, used when an AskOptions field is its zero value (spec.md
// §4.10 step 1's "fallback to static defaults").
const (
	DefaultMaxMatchesCount = 100
	DefaultMaxAskPromptSize = 4096
	DefaultAnswerTokens     = 300
	DefaultTemperature      = 0
	DefaultNucleusSampling  = 1
	DefaultMinRelevance     = 0
)

// Client is the SearchClient described in spec.md §4.10: similarity
// search, citation assembly, token-budgeted fact packing, and streamed
// answer generation, gated by an optional content moderator.
type Client struct {
	store      vectorstore.Store
	embedder   embedding.Provider
	generator  llm.TextGenerator
	tokenizer  textsplitter.Tokenizer
	moderator  moderation.Moderator
	logger     *slog.Logger

	maxAskPromptSize int
	defaults         AskOptions
}

// Option configures a Client at construction.
type Option func(*Client)

// WithModerator sets the content-moderation gate (spec.md §4.10 step 9).
// Defaults to moderation.NoopModerator.
func WithModerator(m moderation.Moderator) Option {
	return func(c *Client) { c.moderator = m }
}

// WithLogger sets the structured logger handle.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMaxAskPromptSize overrides the token budget spec.md §4.10 step 2
// computes against (default DefaultMaxAskPromptSize).
func WithMaxAskPromptSize(n int) Option {
	return func(c *Client) { c.maxAskPromptSize = n }
}

// WithDefaults overrides the static AskOptions fallback used when a
// per-call AskOptions field is its zero value.
func WithDefaults(defaults AskOptions) Option {
	return func(c *Client) { c.defaults = defaults }
}

// New creates a SearchClient over store, embedder, and generator.
func New(store vectorstore.Store, embedder embedding.Provider, generator llm.TextGenerator, tokenizer textsplitter.Tokenizer, opts ...Option) *Client {
	if tokenizer == nil {
		tokenizer = textsplitter.NewSimpleTokenizer()
	}
	c := &Client{
		store:            store,
		embedder:         embedder,
		generator:        generator,
		tokenizer:        tokenizer,
		moderator:        moderation.NoopModerator{},
		logger:           slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		maxAskPromptSize: DefaultMaxAskPromptSize,
		defaults: AskOptions{
			MaxMatchesCount: DefaultMaxMatchesCount,
			MaxTokens:       DefaultAnswerTokens,
			Temperature:     DefaultTemperature,
			NucleusSampling: DefaultNucleusSampling,
			MinRelevance:    DefaultMinRelevance,
			PromptTemplate:  prompts.DefaultAnswerPromptTmpl,
			FactTemplate:    prompts.DefaultFactTemplate,
			EmptyAnswerText: prompts.DefaultEmptyAnswerText,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) countTokens(text string) int {
	return len(c.tokenizer.Encode(text))
}

// resolve merges per-call opts over c.defaults, field by field (spec.md
// §4.10 step 1).
func (c *Client) resolve(opts AskOptions) AskOptions {
	out := c.defaults
	if opts.Filters != nil {
		out.Filters = opts.Filters
	}
	if opts.MinRelevance != 0 {
		out.MinRelevance = opts.MinRelevance
	}
	if opts.MaxMatchesCount != 0 {
		out.MaxMatchesCount = opts.MaxMatchesCount
	}
	if opts.MaxTokens != 0 {
		out.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.NucleusSampling != 0 {
		out.NucleusSampling = opts.NucleusSampling
	}
	if opts.PromptTemplate != "" {
		out.PromptTemplate = opts.PromptTemplate
	}
	if opts.FactTemplate != "" {
		out.FactTemplate = opts.FactTemplate
	}
	if opts.EmptyAnswerText != "" {
		out.EmptyAnswerText = opts.EmptyAnswerText
	}
	return out
}

// ListIndexes returns every index known to the configured VectorStore
// (spec.md §4.10).
func (c *Client) ListIndexes(ctx context.Context) ([]IndexDetails, error) {
	names, err := c.store.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("search: list indexes: %w", err)
	}
	out := make([]IndexDetails, len(names))
	for i, n := range names {
		out[i] = IndexDetails{Name: n}
	}
	return out, nil
}

// unionSearch queries store once per filter in filters (or once,
// unfiltered, if filters is empty) and merges the results, deduplicating
// by record id and keeping the highest score seen for each (spec.md
// S2: "Ask with filter-union... expect answer contains both").
func (c *Client) unionSearch(ctx context.Context, index string, vec []float32, filters []vectorstore.Filter, minRelevance float64, limit int) ([]vectorstore.ScoredRecord, error) {
	if len(filters) == 0 {
		filters = []vectorstore.Filter{nil}
	}
	best := make(map[string]vectorstore.ScoredRecord)
	for _, f := range filters {
		results, err := c.store.Search(ctx, index, vectorstore.SearchRequest{
			Embedding: vec,
			TopK:      limit,
			Filter:    f,
			MinScore:  minRelevance,
		})
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if existing, ok := best[r.Record.ID]; !ok || r.Score > existing.Score {
				best[r.Record.ID] = r
			}
		}
	}
	out := make([]vectorstore.ScoredRecord, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Search performs a similarity search, or degrades to a filter-only list
// when query is empty and filters are present (spec.md §4.10).
func (c *Client) Search(ctx context.Context, index, query string, opts AskOptions) (SearchResult, error) {
	resolved := c.resolve(opts)
	limit := resolved.MaxMatchesCount
	if limit <= 0 || limit > DefaultMaxMatchesCount {
		limit = DefaultMaxMatchesCount
	}

	var records []vectorstore.ScoredRecord
	var err error
	if query == "" {
		if len(resolved.Filters) == 0 {
			return SearchResult{Index: index, Query: query, NoResult: true, NoResultReason: string(ReasonNoFacts)}, nil
		}
		// Degrade to a filter-only list (spec.md §4.10: "if query empty and
		// filters present, degrade to filter-only list"). chromem-go's
		// QueryEmbedding always ranks by similarity, so a zero vector of
		// the configured embedder's dimensionality is used as a neutral
		// probe and MinScore is forced to zero: every matching record is
		// returned regardless of its (meaningless) score against it.
		probe := make([]float32, c.embedder.Info().Dimensions)
		records, err = c.unionSearch(ctx, index, probe, resolved.Filters, 0, limit)
	} else {
		vec, embedErr := c.embedder.Embed(ctx, query)
		if embedErr != nil {
			return SearchResult{}, fmt.Errorf("search: embed query: %w", embedErr)
		}
		records, err = c.unionSearch(ctx, index, vec, resolved.Filters, resolved.MinRelevance, limit)
	}
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}

	citations := groupIntoCitations(records)
	if len(citations) == 0 {
		return SearchResult{Index: index, Query: query, NoResult: true, NoResultReason: string(ReasonNoFacts)}, nil
	}
	return SearchResult{Index: index, Query: query, Results: citations}, nil
}

// groupIntoCitations groups scored records by (index, documentId, fileId)
// into Citation rows, in descending relevance order within each group
// (spec.md §4.10 step 4: "Group results by (index, documentId, fileId)
// into Citation rows").
func groupIntoCitations(records []vectorstore.ScoredRecord) []pipeline.Citation {
	type group struct {
		key   pipeline.Key
		order int
		cite  *pipeline.Citation
	}
	groups := make(map[pipeline.Key]*group)
	var order []pipeline.Key

	for _, r := range records {
		documentID := firstTag(r.Record.Tags, pipeline.ReservedTagDocumentID)
		fileID := firstTag(r.Record.Tags, pipeline.ReservedTagFileID)
		fileType := firstTag(r.Record.Tags, pipeline.ReservedTagFileType)
		sourceName, _ := r.Record.Payload["file_name"].(string)
		lastUpdate, _ := r.Record.Payload["last_update"].(string)
		text, _ := r.Record.Payload["text"].(string)
		sectionNumber := 0
		if v, ok := r.Record.Payload["section_number"].(float64); ok {
			sectionNumber = int(v)
		}

		key := pipeline.Key{DocumentID: documentID, FileID: fileID}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, cite: &pipeline.Citation{
				DocumentID:  documentID,
				FileID:      fileID,
				SourceName:  sourceName,
				ContentType: fileType,
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.cite.Partitions = append(g.cite.Partitions, pipeline.CitationPartition{
			Text:            text,
			Relevance:       r.Score,
			PartitionNumber: len(g.cite.Partitions) + 1,
			SectionNumber:   sectionNumber,
			LastUpdate:      lastUpdate,
			Tags:            r.Record.Tags,
		})
	}

	out := make([]pipeline.Citation, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key].cite)
	}
	return out
}

func firstTag(tags pipeline.Tags, key string) string {
	if v := tags[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func contentHash(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}
