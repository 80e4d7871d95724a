// --- START OF FINAL REVISED FILE pkg/extractor/record.go ---
package extractor

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PathField is the column holding the source file path of every row.
const PathField = "DicomPath"

// nullMarkers are the string values treated as null when writing output.
var nullMarkers = map[string]struct{}{
	"":     {},
	"N/A":  {},
	"None": {},
	"NONE": {},
}

// Record is an ordered mapping from field name to a scalar value
// (string, integer, float, bool, json.Number or nil for null).
// Setting an existing key keeps its position and replaces the value.
type Record struct {
	path   string
	keys   []string
	values map[string]any
}

// NewRecord creates an empty record for the given file path. The path is
// stored as the first field.
func NewRecord(path string) *Record {
	r := &Record{path: path, values: make(map[string]any, 32)}
	r.Set(PathField, path)
	return r
}

// Path returns the file the record was extracted from.
func (r *Record) Path() string { return r.path }

// Set stores value under key. A repeated key is last-write-wins.
func (r *Record) Set(key string, value any) {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns a copy of the field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields, including the path field.
func (r *Record) Len() int { return len(r.keys) }

// Range calls fn for each field in insertion order until fn returns false.
func (r *Record) Range(fn func(key string, value any) bool) {
	for _, k := range r.keys {
		if !fn(k, r.values[k]) {
			return
		}
	}
}

// FormatValue renders a record value as a table cell. The second result is
// false when the value is null, including the null marker strings.
func FormatValue(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case json.Number:
		s = val.String()
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'g', -1, 32)
	case bool:
		s = strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		s = string(b)
	}
	if _, isNull := nullMarkers[strings.TrimSpace(s)]; isNull {
		return "", false
	}
	return s, true
}

// --- END OF FINAL REVISED FILE pkg/extractor/record.go ---
