// Package prompts holds the text templates memoria fills in and sends to a
// TextGenerator, grounded on the teacher's prompts package: the same
// {variable}-substitution idiom (prompts/template.go's FormatString), but
// narrowed to the templates memoria actually drives — the summarize
// handler's paragraph-summary prompt and SearchClient's fact/answer prompts
// plus its empty-answer text — and using the `{{$var}}` placeholder syntax spec.md §4.5/§4.10 specify
// instead of the teacher's single-brace `{var}` syntax (the original syntax
// doesn't matter to any caller; it was never about the programming
// language, only the runtime prompt format the reference system used).
package prompts

import "strings"

// DefaultSummaryPromptTmpl fills one paragraph of source text into a
// summarization prompt (spec.md §4.5: "fill the prompt template {{$input}}").
const DefaultSummaryPromptTmpl = `Write a concise summary of the following text, preserving its key facts. Do not add information that is not present in the text.

{{$input}}

SUMMARY:`

// DefaultFactTemplate renders one retrieved chunk as a grounding fact
// (spec.md §4.10 step 4: "render the fact template with
// {content, source, relevance, recordId, tags, metadata}").
const DefaultFactTemplate = `## {{$source}}
{{$content}}
`

// DefaultAnswerPromptTmpl is the final prompt sent to the TextGenerator
// (spec.md §4.10 step 6: "{{$facts}}, {{$input}}, {{$notFound}}").
const DefaultAnswerPromptTmpl = `Facts:
{{$facts}}

Given only the facts above, answer the following question. If the facts do not contain the answer, reply exactly with: {{$notFound}}

Question: {{$input}}
Answer:`

// DefaultEmptyAnswerText is the sentinel SearchClient compares the
// generated answer against to recognize "no answer found" (spec.md §4.10
// step 8).
const DefaultEmptyAnswerText = "INFO NOT FOUND"

// Fill substitutes every `{{$key}}` placeholder in tmpl with vars[key].
// Unknown placeholders are left untouched so a caller can detect a typo'd
// variable name rather than silently dropping it.
func Fill(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{$"+k+"}}", v)
	}
	return out
}
