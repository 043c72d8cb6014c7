package export

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CloneRecord returns a deep copy of a record.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = CloneValue(v)
	}
	return c
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		c := make([]any, len(x))
		for i := range x {
			c[i] = CloneValue(x[i])
		}
		return c
	case []string:
		return append([]string(nil), x...)
	case map[string]any:
		c := make(map[string]any, len(x))
		for k, e := range x {
			c[k] = CloneValue(e)
		}
		return c
	default:
		return v
	}
}

// Truthy reports whether a decoded JSON value is present and non-empty.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// ValueString renders a scalar value the way it appears in the export.
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Strings returns the elements of a list value, or the value itself as a
// one-element list when it is a scalar.
func Strings(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, ValueString(e))
		}
		return out
	default:
		return []string{ValueString(x)}
	}
}

// IsList reports whether v is a list value.
func IsList(v any) bool {
	switch v.(type) {
	case []any, []string:
		return true
	}
	return false
}

// MatchKey returns a canonical string for equality matching of values.
func MatchKey(v any) string {
	if s, ok := v.(string); ok {
		return "s:" + s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("?:%v", v)
	}
	return "j:" + string(b)
}

// ListValue converts string identifiers into the list representation used by
// decoded JSON records.
func ListValue(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
