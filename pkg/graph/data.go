package graph

import (
	"encoding/json"
	"strconv"
)

// Data is the type-specific payload of a node.
// It is treated as a value: edits build a new Data and swap it in whole
// (see Template.ReplaceData) instead of patching keys on a shared map.
type Data map[string]any

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	if d == nil {
		return Data{}
	}
	return Data(cloneMap(d))
}

// With returns a copy of d with key set to value.
func (d Data) With(key string, value any) Data {
	c := d.Clone()
	c[key] = value
	return c
}

// Value returns the raw value stored under key.
func (d Data) Value(key string) (any, bool) {
	v, ok := d[key]
	return v, ok
}

// String returns the string stored under key, or def.
func (d Data) String(key, def string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return def
}

// Float returns the numeric value stored under key, or def.
func (d Data) Float(key string, def float64) float64 {
	if v, ok := Number(d[key]); ok {
		return v
	}
	return def
}

// Int returns the numeric value stored under key truncated to int, or def.
func (d Data) Int(key string, def int) int {
	if v, ok := Number(d[key]); ok {
		return int(v)
	}
	return def
}

// Bool returns the boolean stored under key, or def.
func (d Data) Bool(key string, def bool) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return def
}

// Maps returns the list stored under key, keeping only its object entries.
func (d Data) Maps(key string) []map[string]any {
	switch list := d[key].(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, m)
			case Data:
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Number converts JSON-ish numeric values to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// FormatValue renders a stored value for display. Whole numbers print
// without a fractional part.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if f, ok := Number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// CloneValue deep-copies maps and slices inside v.
func CloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case Data:
		return Data(cloneMap(x))
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = CloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, item := range x {
			out[i] = cloneMap(item)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
