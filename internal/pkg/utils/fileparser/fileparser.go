// Package fileparser estimates, previews and profiles tabular dataset files.
package fileparser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrMalformedFile       = errors.New("malformed file")
)

const (
	TypeCSV  = "csv"
	TypeJSON = "json"
)

// Supported reports whether ext can be estimated, previewed and profiled.
func Supported(ext string) bool {
	return ext == TypeCSV || ext == TypeJSON
}

type Counts struct {
	Rows    int
	Columns int
}

// Estimate counts rows and columns without building records.
// CSV: records after the header, fields in the header. JSON: array length and
// keys of the first element; a bare object is one row.
func Estimate(ext string, data []byte) (Counts, error) {
	switch ext {
	case TypeCSV:
		return estimateCSV(data)
	case TypeJSON:
		return estimateJSON(data)
	default:
		return Counts{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

func newCSVReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = true
	// inch marks and other stray quotes are data, not errors
	r.LazyQuotes = true
	return r
}

// estimateCSV is a line scan: rows are non-blank lines after the first, columns
// are the comma separated fields of the first. It never rejects a file.
func estimateCSV(data []byte) (Counts, error) {
	var c Counts
	lines := 0
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if lines == 0 {
			c.Columns = bytes.Count(line, []byte(",")) + 1
		}
		lines++
	}
	if lines > 0 {
		c.Rows = lines - 1
	}
	return c, nil
}

func estimateJSON(data []byte) (Counts, error) {
	var v any
	if err := sonic.Unmarshal(data, &v); err != nil {
		return Counts{}, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	switch t := v.(type) {
	case []any:
		c := Counts{Rows: len(t)}
		if len(t) > 0 {
			if first, ok := t[0].(map[string]any); ok {
				c.Columns = len(first)
			}
		}
		return c, nil
	case map[string]any:
		return Counts{Rows: 1, Columns: len(t)}, nil
	default:
		return Counts{}, fmt.Errorf("%w: top-level value must be an array or object", ErrMalformedFile)
	}
}

// isBlank reports whether rec came from a whitespace-only line. A line of bare
// commas is a row of empty values.
func isBlank(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}
