// Package mcp exposes the Nyx catalog, the chunk index and the SQLite
// store as Model Context Protocol tools.
package mcp

// SearchDatasetsInput defines the input parameters for the search_datasets tool.
type SearchDatasetsInput struct {
	// Text is free text matched against titles and descriptions.
	Text        string   `json:"text,omitempty" jsonschema:"free text to search for"`
	Categories  []string `json:"categories,omitempty" jsonschema:"only datasets in all of these categories"`
	Genre       string   `json:"genre,omitempty" jsonschema:"only datasets of this genre"`
	Creator     string   `json:"creator,omitempty" jsonschema:"only datasets published by this organization"`
	License     string   `json:"license,omitempty" jsonschema:"only datasets under this license URL"`
	ContentType string   `json:"content_type,omitempty" jsonschema:"only datasets of this content type, e.g. text/csv"`
	// Subscription is one of all, subscribed or not-subscribed.
	Subscription string `json:"subscription,omitempty" jsonschema:"all, subscribed or not-subscribed"`
	LocalOnly    bool   `json:"local_only,omitempty" jsonschema:"search this Nyx instance only, not the federation"`
	MaxResults   int    `json:"max_results,omitempty" jsonschema:"maximum number of datasets to return, default 20"`
}

// DatasetSummary is one dataset in search results.
type DatasetSummary struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Creator     string   `json:"creator"`
	ContentType string   `json:"content_type"`
	Size        int64    `json:"size"`
	Categories  []string `json:"categories"`
	URL         string   `json:"url"`
}

// SearchDatasetsOutput contains the search results.
type SearchDatasetsOutput struct {
	Results []DatasetSummary `json:"results"`
	// Message provides informational context (e.g., "No matching datasets found").
	Message string `json:"message,omitempty"`
}

// QueryChunksInput defines the input parameters for the query_chunks tool.
type QueryChunksInput struct {
	Query string `json:"query" jsonschema:"the text to find similar passages for"`
	K     int    `json:"k,omitempty" jsonschema:"number of passages to return, default 5"`
	// Title restricts results to one dataset.
	Title string `json:"title,omitempty" jsonschema:"only passages from the dataset with this title"`
}

// ChunkMatch is one passage with its source.
type ChunkMatch struct {
	Content     string  `json:"content"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
}

// QueryChunksOutput contains the ranked passages.
type QueryChunksOutput struct {
	Matches []ChunkMatch `json:"matches"`
	Message string       `json:"message,omitempty"`
}

// ListSubscriptionsInput takes no parameters.
type ListSubscriptionsInput struct{}

// Subscription is one manifest row.
type Subscription struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Table       string `json:"table"`
	Description string `json:"description"`
}

// ListSubscriptionsOutput lists every loaded dataset and its table.
type ListSubscriptionsOutput struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Count         int            `json:"count"`
}

// SQLQueryInput defines the input parameters for the sql_query tool.
type SQLQueryInput struct {
	Query string `json:"query" jsonschema:"a single read-only SQLite statement: SELECT, WITH or PRAGMA"`
}

// SQLQueryOutput holds the materialised result.
type SQLQueryOutput struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from subscribed data"`
	K        int    `json:"k,omitempty" jsonschema:"number of passages to give the model, default 5"`
}

// AskOutput is the model's answer.
type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source is a dataset an answer drew on.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes what is currently loaded.
type StatusOutput struct {
	Tables      []string `json:"tables"`
	Datasets    int      `json:"datasets"`
	Chunks      int      `json:"chunks"`
	IndexBuilt  bool     `json:"index_built"`
	MirrorCount *uint64  `json:"mirror_count,omitempty"`
}
