package llm

import (
	"strings"

	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
)

// BuildQuery appends the grounding rules every prompt carries, followed
// by the database context.
func BuildQuery(prompt, context string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString(" Each table in the database is a file from a source; do not talk as if the results come from a database. ")
	b.WriteString("If there are no tables in the schema, or none of them are relevant, respond with exactly 'I don't know'. ")
	b.WriteString("Leave every URL exactly as given, including its query parameters. ")
	b.WriteString("If no table matches exactly, answer from the most relevant one, but only when it answers the question.\n")
	b.WriteString("Database information:\n")
	b.WriteString(context)
	return b.String()
}

// WithSources asks for the sources behind an answer, looked up through the
// subscriptions manifest, as a markdown list.
func WithSources(prompt, context string) string {
	return BuildQuery(prompt+
		" Using the table "+storage.ManifestTable+", where table_name is the table the information came from, "+
		"list the source title and url of every table you used. Call them sources, not tables. "+
		"Always include sources, formatted as a markdown list.", context)
}

// WithConfidence asks for a bare answer plus a confidence score, as a JSON
// object with content and confidence fields.
func WithConfidence(prompt string) string {
	return prompt + " Each table in the database is a file from a source; do not mention sources in your answer. " +
		"If there are no tables in the schema, or none of them are relevant, respond with exactly 'I don't know'. " +
		`Also give a confidence score between 0 and 1. Respond in JSON format: {"content": "<answer>", "confidence": <score>}`
}
