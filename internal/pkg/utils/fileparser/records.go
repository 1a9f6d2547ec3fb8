package fileparser

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// Table is a parsed dataset: column names in file order and one map per row.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// Parse reads the whole file into a Table. CSV uses the header row as keys,
// skips blank lines and trims values. JSON keeps array elements; a bare
// object becomes a single row. JSON columns are ordered by first
// appearance, keys of one object sorted by name.
func Parse(ext string, data []byte) (*Table, error) {
	switch ext {
	case TypeCSV:
		return parseCSV(data)
	case TypeJSON:
		return parseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

func parseCSV(data []byte) (*Table, error) {
	r := newCSVReader(data)
	r.ReuseRecord = false

	t := &Table{Rows: []map[string]any{}}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
		}
		if isBlank(rec) {
			continue
		}
		if t.Columns == nil {
			t.Columns = make([]string, len(rec))
			for i, h := range rec {
				t.Columns[i] = strings.TrimSpace(h)
			}
			continue
		}
		row := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if t.Columns == nil {
		t.Columns = []string{}
	}
	return t, nil
}

func parseJSON(data []byte) (*Table, error) {
	var v any
	if err := sonic.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}

	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case map[string]any:
		items = []any{x}
	default:
		return nil, fmt.Errorf("%w: top-level value must be an array or object", ErrMalformedFile)
	}

	t := &Table{Columns: []string{}, Rows: make([]map[string]any, 0, len(items))}
	seen := map[string]bool{}
	for _, it := range items {
		row, ok := it.(map[string]any)
		if !ok {
			row = map[string]any{"value": it}
		}
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

type Preview struct {
	TotalRows int              `json:"total_rows"`
	Rows      []map[string]any `json:"rows"`
}

// PreviewRows returns at most n leading rows and the total row count.
func PreviewRows(ext string, data []byte, n int) (*Preview, error) {
	t, err := Parse(ext, data)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Preview{TotalRows: len(t.Rows), Rows: t.Rows[:n]}, nil
}
