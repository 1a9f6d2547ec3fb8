package fileparser

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnBoolean     ColumnType = "boolean"
	ColumnDatetime    ColumnType = "datetime"
	ColumnCategorical ColumnType = "categorical"
	ColumnUnknown     ColumnType = "unknown"
)

type ColumnStats struct {
	Name    string     `json:"name"`
	Type    ColumnType `json:"type"`
	Count   int        `json:"count"`
	Missing int        `json:"missing"`
	Unique  int        `json:"unique"`
	Min     *float64   `json:"min,omitempty"`
	Max     *float64   `json:"max,omitempty"`
	Mean    *float64   `json:"mean,omitempty"`
	Median  *float64   `json:"median,omitempty"`
	Std     *float64   `json:"std,omitempty"`
	Mode    string     `json:"mode,omitempty"`
}

type Summary struct {
	RowCount    int           `json:"row_count"`
	ColumnCount int           `json:"column_count"`
	Columns     []ColumnStats `json:"columns"`
}

// Profile parses the file and computes per-column statistics.
func Profile(ext string, data []byte) (*Summary, error) {
	t, err := Parse(ext, data)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		RowCount:    len(t.Rows),
		ColumnCount: len(t.Columns),
		Columns:     make([]ColumnStats, 0, len(t.Columns)),
	}
	for _, col := range t.Columns {
		values := make([]any, len(t.Rows))
		for i, row := range t.Rows {
			values[i] = row[col]
		}
		s.Columns = append(s.Columns, columnStats(col, values))
	}
	return s, nil
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return true
	case string:
		return x == "true" || x == "false"
	}
	return false
}

var datetimeLayouts = []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly}

func asTime(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func detectType(present []any) ColumnType {
	if len(present) == 0 {
		return ColumnUnknown
	}
	all := func(pred func(any) bool) bool {
		for _, v := range present {
			if !pred(v) {
				return false
			}
		}
		return true
	}
	switch {
	case all(func(v any) bool { _, ok := asFloat(v); return ok }):
		return ColumnNumeric
	case all(asBool):
		return ColumnBoolean
	case all(asTime):
		return ColumnDatetime
	default:
		return ColumnCategorical
	}
}

func columnStats(name string, values []any) ColumnStats {
	present := make([]any, 0, len(values))
	for _, v := range values {
		if !isMissing(v) {
			present = append(present, v)
		}
	}

	st := ColumnStats{
		Name:    name,
		Count:   len(values),
		Missing: len(values) - len(present),
		Type:    detectType(present),
	}

	freq := map[string]int{}
	for _, v := range present {
		freq[fmt.Sprint(v)]++
	}
	st.Unique = len(freq)

	switch st.Type {
	case ColumnNumeric:
		nums := make([]float64, 0, len(present))
		for _, v := range present {
			f, _ := asFloat(v)
			nums = append(nums, f)
		}
		numericStats(&st, nums)
	case ColumnBoolean, ColumnCategorical:
		st.Mode = mode(freq)
	}
	return st
}

func numericStats(st *ColumnStats, nums []float64) {
	sort.Float64s(nums)
	n := float64(len(nums))

	var sum float64
	for _, f := range nums {
		sum += f
	}
	mean := sum / n

	var sq float64
	for _, f := range nums {
		sq += (f - mean) * (f - mean)
	}
	std := math.Sqrt(sq / n)

	mid := len(nums) / 2
	median := nums[mid]
	if len(nums)%2 == 0 {
		median = (nums[mid-1] + nums[mid]) / 2
	}

	lo, hi := nums[0], nums[len(nums)-1]
	st.Min, st.Max, st.Mean, st.Median, st.Std = &lo, &hi, &mean, &median, &std
}

// mode picks the most frequent value, ties broken by the smaller string.
func mode(freq map[string]int) string {
	best, bestN := "", 0
	for v, n := range freq {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
