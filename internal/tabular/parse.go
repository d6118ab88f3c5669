package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"github.com/Iotic-Labs/nyx-sdk/internal/dataset"
	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
)

// naValues are cell texts read as NULL.
var naValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
}

// frame is parsed tabular content before typing. Every row has exactly
// len(header) cells; a cell is nil, string, int64 or float64.
type frame struct {
	header []string
	rows   [][]any
	// dropped counts malformed input rows left out of rows.
	dropped int
}

func (f *frame) pad() {
	for i, row := range f.rows {
		for len(row) < len(f.header) {
			row = append(row, nil)
		}
		f.rows[i] = row
	}
}

// parse dispatches on the dataset format.
func parse(format dataset.Format, b []byte) (*frame, error) {
	switch format {
	case dataset.FormatCSV:
		return parseCSV(b)
	case dataset.FormatSpreadsheet:
		return parseSpreadsheet(b)
	case dataset.FormatJSON:
		return parseJSON(b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, format)
	}
}

func parseCSV(b []byte) (*frame, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	f := &frame{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				f.dropped++
				continue
			}
			return nil, err
		}

		if f.header == nil {
			f.header = record
			continue
		}
		if len(record) > len(f.header) {
			f.dropped++
			continue
		}
		row := make([]any, len(record))
		for i, cell := range record {
			if !naValues[cell] {
				row[i] = cell
			}
		}
		f.rows = append(f.rows, row)
	}
	if len(f.header) == 0 {
		return nil, ErrNoHeader
	}
	f.pad()
	return f, nil
}

// parseSpreadsheet reads the first sheet of an xlsx workbook. Its first
// row is the header.
func parseSpreadsheet(b []byte) (*frame, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrNoHeader
	}

	f := &frame{header: rows[0]}
	for _, cells := range rows[1:] {
		for len(cells) > len(f.header) {
			f.header = append(f.header, "")
		}
		row := make([]any, len(cells))
		for i, cell := range cells {
			if !naValues[cell] {
				row[i] = cell
			}
		}
		f.rows = append(f.rows, row)
	}
	f.pad()
	return f, nil
}

// parseJSON accepts records (an array of objects), an array of scalars,
// columns (an object of arrays or of index to value objects) and a single
// object of scalars. Key order is kept.
func parseJSON(b []byte) (*frame, error) {
	if !gjson.ValidBytes(b) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrUnsupportedShape)
	}
	root := gjson.ParseBytes(b)

	switch {
	case root.IsArray():
		items := root.Array()
		if len(items) == 0 {
			return nil, ErrNoHeader
		}
		if !items[0].IsObject() {
			return scalarColumn(items)
		}
		return jsonRecords(items)
	case root.IsObject():
		return jsonColumns(root)
	default:
		return nil, fmt.Errorf("%w: top level %s", ErrUnsupportedShape, root.Type)
	}
}

func scalarColumn(items []gjson.Result) (*frame, error) {
	f := &frame{header: []string{"value"}}
	for _, item := range items {
		if item.IsObject() {
			return nil, fmt.Errorf("%w: mixed array", ErrUnsupportedShape)
		}
		f.rows = append(f.rows, []any{jsonValue(item)})
	}
	return f, nil
}

func jsonRecords(items []gjson.Result) (*frame, error) {
	keys := newKeySet()
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("%w: mixed array", ErrUnsupportedShape)
		}
		rec := make(map[string]any)
		item.ForEach(func(k, v gjson.Result) bool {
			keys.add(k.String())
			rec[k.String()] = jsonValue(v)
			return true
		})
		records = append(records, rec)
	}

	f := &frame{header: keys.order}
	for _, rec := range records {
		row := make([]any, len(keys.order))
		for i, k := range keys.order {
			row[i] = rec[k]
		}
		f.rows = append(f.rows, row)
	}
	return f, nil
}

func jsonColumns(root gjson.Result) (*frame, error) {
	var (
		header  []string
		columns []map[string]any
		index   = newKeySet()
		arrays  int
		objects int
		scalars int
	)
	root.ForEach(func(k, v gjson.Result) bool {
		header = append(header, k.String())
		col := make(map[string]any)
		switch {
		case v.IsArray():
			arrays++
			for i, item := range v.Array() {
				key := strconv.Itoa(i)
				index.add(key)
				col[key] = jsonValue(item)
			}
		case v.IsObject():
			objects++
			v.ForEach(func(ik, iv gjson.Result) bool {
				index.add(ik.String())
				col[ik.String()] = jsonValue(iv)
				return true
			})
		default:
			scalars++
			index.add("0")
			col["0"] = jsonValue(v)
		}
		columns = append(columns, col)
		return true
	})

	if len(header) == 0 {
		return nil, ErrNoHeader
	}
	if scalars > 0 && scalars != len(header) {
		return nil, fmt.Errorf("%w: object mixes scalars with %d arrays and %d objects", ErrUnsupportedShape, arrays, objects)
	}

	f := &frame{header: header}
	for _, key := range index.order {
		row := make([]any, len(header))
		for i, col := range columns {
			row[i] = col[key]
		}
		f.rows = append(f.rows, row)
	}
	return f, nil
}

type keySet struct {
	seen  map[string]bool
	order []string
}

func newKeySet() *keySet {
	return &keySet{seen: make(map[string]bool)}
}

func (s *keySet) add(k string) {
	if !s.seen[k] {
		s.seen[k] = true
		s.order = append(s.order, k)
	}
}

// jsonValue maps a JSON value to a cell. Nested arrays and objects keep
// their JSON text; booleans become 1 and 0.
func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return int64(1)
	case gjson.False:
		return int64(0)
	case gjson.Number:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return n
		}
		return v.Num
	case gjson.String:
		return v.Str
	default:
		return v.Raw
	}
}

// buildTable slugs the frame's column names and types every column.
func buildTable(name string, f *frame) (storage.Table, error) {
	if len(f.header) == 0 {
		return storage.Table{}, ErrNoHeader
	}
	t := storage.Table{
		Name:    name,
		Columns: make([]storage.Column, len(f.header)),
		Rows:    make([][]any, len(f.rows)),
	}
	for i := range t.Rows {
		t.Rows[i] = make([]any, len(f.header))
	}

	values := make([]any, len(f.rows))
	for c, colName := range columnNames(f.header) {
		for r, row := range f.rows {
			values[r] = row[c]
		}
		aff := inferAffinity(values)
		t.Columns[c] = storage.Column{Name: colName, Type: aff}
		for r, v := range values {
			t.Rows[r][c] = convert(v, aff)
		}
	}
	return t, nil
}

// inferAffinity picks INTEGER when every non-NULL value is an integer,
// REAL when every one is a finite number and TEXT otherwise.
func inferAffinity(values []any) storage.Affinity {
	aff := storage.AffinityInteger
	seen := false
	for _, v := range values {
		switch v := v.(type) {
		case nil:
			continue
		case int64:
		case float64:
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return storage.AffinityText
			}
			aff = storage.AffinityReal
		case string:
			s := strings.TrimSpace(v)
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				break
			}
			if _, ok := parseFinite(s); !ok {
				return storage.AffinityText
			}
			aff = storage.AffinityReal
		default:
			return storage.AffinityText
		}
		seen = true
	}
	if !seen {
		return storage.AffinityText
	}
	return aff
}

func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// convert returns v stored under aff. v is known to fit.
func convert(v any, aff storage.Affinity) any {
	if v == nil {
		return nil
	}
	switch aff {
	case storage.AffinityInteger:
		if s, ok := v.(string); ok {
			n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			return n
		}
		return v
	case storage.AffinityReal:
		switch v := v.(type) {
		case int64:
			return float64(v)
		case string:
			f, _ := parseFinite(strings.TrimSpace(v))
			return f
		}
		return v
	default:
		switch v := v.(type) {
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
		return v
	}
}
