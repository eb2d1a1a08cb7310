package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ProductRecord is the canonical attribute -> value form of one catalog item.
// Values are string, float64, []string, bool or map[string]interface{}.
type ProductRecord map[string]interface{}

// Clone returns a copy of the record whose slices and maps are not shared
func (r ProductRecord) Clone() ProductRecord {
	if r == nil {
		return nil
	}
	c := make(ProductRecord, len(r))
	for k, v := range r {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Keys returns the attribute names of the record in sorted order
func (r ProductRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether the attribute is present with a non-empty value
func (r ProductRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && !IsEmptyValue(v)
}

// String returns the attribute rendered as a string, or "" when absent
func (r ProductRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return ValueToString(v)
}

// SKU returns the record's sku attribute
func (r ProductRecord) SKU() string {
	return r.String("sku")
}

// IsEmptyValue reports whether v counts as absent for required checks.
// Empty strings, empty arrays and empty objects are empty.
func IsEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

// ValueToString renders an attribute value as text
func ValueToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []string:
		return strings.Join(t, ", ")
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, ValueToString(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ToStringSlice converts an array-like value into a []string
func ToStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := ValueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	default:
		return []string{ValueToString(t)}
	}
}

// ToFloat converts a numeric or numeric-string value into a float64
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
