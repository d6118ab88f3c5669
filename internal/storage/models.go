package storage

// Chunk is one window of the semantic index mirrored into Qdrant.
// Its vector is the sparse TF-IDF row of the chunk.
type Chunk struct {
	ID          string // UUID
	ChunkIndex  int    // Position in the index (0, 1, 2...)
	Content     string
	Title       string
	URL         string
	Description string
	Indices     []uint32
	Values      []float32
}

// ScoredChunk pairs a chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// CollectionName is the single Qdrant collection holding index chunks.
const CollectionName = "nyx_chunks"

// SparseVectorName names the TF-IDF sparse vector on each point.
const SparseVectorName = "tfidf"

// Affinity is the SQLite column type inferred for a tabular column.
type Affinity string

const (
	AffinityInteger Affinity = "INTEGER"
	AffinityReal    Affinity = "REAL"
	AffinityText    Affinity = "TEXT"
)

// Column is a named, typed table column.
type Column struct {
	Name string
	Type Affinity
}

// Table is a fully materialised table ready to be written. Each row holds
// one value per column; nil is stored as NULL.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// IfExists decides what a write does when the table is already present.
type IfExists int

const (
	// Replace drops the existing table first.
	Replace IfExists = iota
	// Append inserts into the existing table.
	Append
	// Fail returns ErrTableExists.
	Fail
)

func (m IfExists) String() string {
	switch m {
	case Append:
		return "append"
	case Fail:
		return "fail"
	default:
		return "replace"
	}
}

// ParseIfExists maps "replace", "append" or "fail" to a mode. Anything else
// is Replace.
func ParseIfExists(s string) IfExists {
	switch s {
	case "append":
		return Append
	case "fail":
		return Fail
	default:
		return Replace
	}
}

// ManifestTable lists every dataset that was materialised locally.
const ManifestTable = "nyx_subscriptions"

// ManifestRow is one row of ManifestTable.
type ManifestRow struct {
	FileTitle   string `json:"file_title"`
	URL         string `json:"url"`
	TableName   string `json:"table_name"`
	Description string `json:"description"`
}

// ResultSet is the materialised output of a read query.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}
