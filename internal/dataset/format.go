package dataset

import "strings"

// Format is the coarse content family that decides how a dataset is ingested.
type Format int

const (
	FormatText Format = iota
	FormatCSV
	FormatSpreadsheet
	FormatJSON
	FormatMarkdown
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatSpreadsheet:
		return "spreadsheet"
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "markdown"
	default:
		return "text"
	}
}

// Tabular reports whether the format is loaded into the relational store
// rather than the chunk index.
func (f Format) Tabular() bool {
	return f == FormatCSV || f == FormatSpreadsheet || f == FormatJSON
}

// FormatOf classifies a raw or normalized content type.
func FormatOf(contentType string) Format {
	ct := strings.ToLower(NormalizeContentType(contentType))
	switch {
	case strings.Contains(ct, "csv"):
		return FormatCSV
	case ct == "xlsx", ct == "xls", ct == "vnd.ms-excel",
		ct == "vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatSpreadsheet
	case strings.Contains(ct, "json"):
		return FormatJSON
	case ct == "markdown", ct == "md", ct == "x-markdown":
		return FormatMarkdown
	}
	return FormatText
}

// Format classifies the dataset's content type.
func (d *Dataset) Format() Format { return FormatOf(d.contentType) }
