// Package search implements SearchClient: similarity search, citation
// assembly, token-budgeted fact packing, and streamed answer generation
// over a VectorStore (spec.md §4.10). No teacher file models a RAG
// query/answer client end-to-end, so this package is grounded in spec.md
// §4.10 directly, expressed in the teacher's small-interface,
// functional-option construction idiom (c.f. vectorstore/chromem.New,
// embedding.NewResilient) and using the teacher's `prompts` template
// format (see package prompts).
package search

import (
	"time"

	"github.com/kestrelai/memoria/llm"
	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/vectorstore"
)

// IndexDetails describes one index known to the configured VectorStore(s),
// returned by ListIndexes (spec.md §4.10).
type IndexDetails struct {
	Name string `json:"name"`
}

// SearchResult is the response of Search: citations grouped by source
// file, capped at MaxMatchesCount regardless of backend (spec.md §4.10).
type SearchResult struct {
	Index      string              `json:"index"`
	Query      string              `json:"query"`
	Results    []pipeline.Citation `json:"results"`
	NoResult   bool                `json:"no_result,omitempty"`
	NoResultReason string          `json:"no_result_reason,omitempty"`
}

// StreamState marks where a MemoryAnswer snapshot sits in a streaming
// Ask call: Reset starts a fresh answer (or signals a terminal
// no-result), Append adds one more token's worth of text, Last marks the
// final snapshot of a stream that produced answer text, including an
// answer replaced by moderation (spec.md §4.10: "streamState
// moves Append...Append...Reset").
type StreamState string

const (
	StreamStateReset  StreamState = "reset"
	StreamStateAppend StreamState = "append"
	StreamStateLast   StreamState = "last"
)

// ResultReason classifies why Ask produced (or did not produce) a
// grounded answer, per spec.md §4.10 steps 5/8/9 and §7's "no data"
// handling.
type ResultReason string

const (
	ReasonOK                 ResultReason = ""
	ReasonNoFacts            ResultReason = "no_facts"
	ReasonInsufficientTokens ResultReason = "insufficient_tokens"
	ReasonUnsafeAnswer       ResultReason = "unsafe_answer"
)

// MemoryAnswer is the result of Ask/AskStream (spec.md §4.10).
type MemoryAnswer struct {
	Question       string              `json:"question"`
	NoResult       bool                `json:"no_result"`
	NoResultReason string              `json:"no_result_reason,omitempty"`
	Text           string              `json:"text"`
	RelevantSources []pipeline.Citation `json:"relevant_sources"`
	TokenUsage     *llm.TokenUsage     `json:"token_usage,omitempty"`

	// StreamState locates this snapshot within a streaming Ask call. Not
	// meaningful on the single return value of the non-streaming Ask.
	StreamState StreamState `json:"-"`
}

// AskOptions configures one Ask/AskStream/Search call, with fallback to
// Client's static defaults per spec.md §4.10 step 1 ("Resolve
// configuration... from context with fallback to static defaults").
type AskOptions struct {
	// Filters is a list of alternative filters, unioned together: a
	// record matches if it satisfies any one of them (spec.md §4.10/S2:
	// "Ask with filter-union [user=hulk, user=flash]").
	Filters         []vectorstore.Filter
	MinRelevance    float64
	MaxMatchesCount int
	MaxTokens       int
	Temperature     float64
	NucleusSampling float64
	PromptTemplate  string
	FactTemplate    string
	EmptyAnswerText string
}

// clock is overridable in tests; production code uses time.Now.
var clock = time.Now
