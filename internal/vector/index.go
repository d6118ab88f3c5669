// Package vector is an in-memory semantic index over the text content of
// datasets, ranked by TF-IDF cosine similarity.
package vector

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/markdown"
)

// MessageNotBuilt is reported by Query before any content was indexed.
const MessageNotBuilt = "content not processed, or not present on the data (do you have access?)"

// Metadata describes the dataset a chunk came from. Every chunk of a
// dataset carries the same metadata.
type Metadata struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Result is the outcome of a query. Chunks, Metadata and Similarities are
// parallel and ordered by descending similarity. A query against an
// unbuilt index has Success false and a Message instead of chunks.
type Result struct {
	Chunks       []string   `json:"chunks"`
	Metadata     []Metadata `json:"metadata"`
	Similarities []float64  `json:"similarities"`
	Success      bool       `json:"success"`
	Message      string     `json:"message,omitempty"`
}

// Len is the number of chunks in the result.
func (r Result) Len() int {
	return len(r.Chunks)
}

// Skip records a dataset left out of the index.
type Skip struct {
	Title  string
	Reason string
}

// ExportedChunk is one indexed chunk with its sparse vector, in the shape
// the Qdrant mirror stores.
type ExportedChunk struct {
	Position int
	Content  string
	Metadata Metadata
	Indices  []uint32
	Values   []float32
}

// Index holds chunks, their metadata and their fitted vectors. A build
// replaces all three at once. An Index is not safe for concurrent use.
type Index struct {
	chunks   []string
	metadata []Metadata
	vectors  []SparseVector
	model    *Model
	skipped  []Skip

	extractor *markdown.Extractor
	logger    *slog.Logger
}

// NewIndex returns an unbuilt index. A nil logger uses slog.Default().
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		extractor: markdown.NewExtractor(),
		logger:    logger.With("component", "vector"),
	}
}

// Built reports whether the index holds at least one chunk.
func (ix *Index) Built() bool {
	return ix.model != nil
}

// Len is the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Skipped lists the datasets the last build could not read.
func (ix *Index) Skipped() []Skip {
	return append([]Skip(nil), ix.skipped...)
}

// Build indexes every non-tabular dataset in datasets, split into windows
// of chunkSize words. Datasets whose content cannot be read are skipped.
// With no chunks at all the index is left unbuilt. Only cancellation of
// ctx returns an error, in which case the previous index is kept.
func (ix *Index) Build(ctx context.Context, datasets []*dataset.Dataset, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var (
		chunks   []string
		metadata []Metadata
		skipped  []Skip
	)
	for _, d := range datasets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Format().Tabular() {
			continue
		}

		text, description, err := ix.content(ctx, d)
		if err != nil {
			ix.logger.Warn("Skipping dataset", "title", d.Title(), "error", err)
			skipped = append(skipped, Skip{Title: d.Title(), Reason: err.Error()})
			continue
		}

		meta := Metadata{Title: d.Title(), URL: d.URL(), Description: description}
		for _, window := range Chunk(text, chunkSize) {
			chunks = append(chunks, window)
			metadata = append(metadata, meta)
		}
	}

	ix.chunks, ix.metadata, ix.vectors, ix.model = nil, nil, nil, nil
	ix.skipped = skipped
	if len(chunks) == 0 {
		ix.logger.Info("No content to index")
		return nil
	}

	model := Fit(chunks)
	vectors := make([]SparseVector, len(chunks))
	for i, c := range chunks {
		vectors[i] = model.Transform(c)
	}

	ix.chunks = chunks
	ix.metadata = metadata
	ix.vectors = vectors
	ix.model = model
	ix.logger.Info("Index built", "chunks", len(chunks), "terms", model.Len(), "skipped", len(skipped))
	return nil
}

// content returns the text to chunk and the description to attach.
// Markdown is reduced to plain text, and its outline stands in for a
// missing description.
func (ix *Index) content(ctx context.Context, d *dataset.Dataset) (string, string, error) {
	raw, err := d.Bytes(ctx)
	if err != nil {
		return "", "", err
	}
	description := d.Description()
	if d.Format() != dataset.FormatMarkdown {
		return string(raw), description, nil
	}

	doc, err := ix.extractor.Extract(raw)
	if err != nil {
		return "", "", err
	}
	if description == dataset.DefaultDescription && len(doc.Outline) > 0 {
		description = strings.Join(doc.Outline, ", ")
	}
	return doc.Text, description, nil
}

// Query returns the k chunks most similar to text. Ties keep index order.
// k larger than the index returns every chunk; k <= 0 returns none.
func (ix *Index) Query(text string, k int) Result {
	if !ix.Built() {
		return Result{Success: false, Message: MessageNotBuilt}
	}

	q := ix.model.Transform(text)
	scores := make([]float64, len(ix.vectors))
	for i, v := range ix.vectors {
		scores[i] = q.Dot(v)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k = max(min(k, len(order)), 0)
	result := Result{
		Chunks:       make([]string, 0, k),
		Metadata:     make([]Metadata, 0, k),
		Similarities: make([]float64, 0, k),
		Success:      true,
	}
	for _, i := range order[:k] {
		result.Chunks = append(result.Chunks, ix.chunks[i])
		result.Metadata = append(result.Metadata, ix.metadata[i])
		result.Similarities = append(result.Similarities, scores[i])
	}
	return result
}

// Vectorize maps text into the index's vector space, for searching the
// Qdrant mirror. It returns false when the index is unbuilt.
func (ix *Index) Vectorize(text string) ([]uint32, []float32, bool) {
	if !ix.Built() {
		return nil, nil, false
	}
	indices, values := toFloat32(ix.model.Transform(text))
	return indices, values, true
}

// Export returns every chunk with its vector, in index order.
func (ix *Index) Export() []ExportedChunk {
	out := make([]ExportedChunk, len(ix.chunks))
	for i := range ix.chunks {
		indices, values := toFloat32(ix.vectors[i])
		out[i] = ExportedChunk{
			Position: i,
			Content:  ix.chunks[i],
			Metadata: ix.metadata[i],
			Indices:  indices,
			Values:   values,
		}
	}
	return out
}

// All returns every chunk as a result, in index order with zero similarity.
func (ix *Index) All() Result {
	if !ix.Built() {
		return Result{Success: false, Message: MessageNotBuilt}
	}
	return Result{
		Chunks:       append([]string(nil), ix.chunks...),
		Metadata:     append([]Metadata(nil), ix.metadata...),
		Similarities: make([]float64, len(ix.chunks)),
		Success:      true,
	}
}

func toFloat32(v SparseVector) ([]uint32, []float32) {
	indices := make([]uint32, len(v.Indices))
	values := make([]float32, len(v.Values))
	for i := range v.Indices {
		indices[i] = uint32(v.Indices[i])
		values[i] = float32(v.Values[i])
	}
	return indices, values
}
