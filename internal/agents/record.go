package agents

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is the key/value object parsed from a model response.
type Record map[string]any

func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

// Upper returns the upper-cased string value, useful for enum fields.
func (r Record) Upper(key string) string {
	return strings.ToUpper(r.String(key))
}

// Float returns the numeric value of key, casting numeric strings. Missing or
// non-numeric values yield 0.
func (r Record) Float(key string) float64 {
	f, _ := r.float(key)
	return f
}

// FloatOr is Float with a fallback for missing or non-numeric values.
func (r Record) FloatOr(key string, def float64) float64 {
	if f, ok := r.float(key); ok {
		return f
	}
	return def
}

// FloatPtr returns nil when the value is absent or not numeric.
func (r Record) FloatPtr(key string) *float64 {
	if f, ok := r.float(key); ok {
		return &f
	}
	return nil
}

// float reports ok=false for missing, non-numeric and non-finite values; ParseFloat
// accepts "NaN" and "Infinity".
func (r Record) float(key string) (float64, bool) {
	var f float64
	switch v := r[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(v), "%")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case float64:
		return v != 0
	}
	return false
}

// Strings returns list values as strings. A single string is returned as a one-element list.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}
		}
		return []string{v}
	}
	return []string{}
}

func (r Record) Map(key string) map[string]any {
	if m, ok := r[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Record returns a nested object as a Record.
func (r Record) Record(key string) Record {
	return Record(r.Map(key))
}

// FloatMap returns the numeric entries of a nested object.
func (r Record) FloatMap(key string) map[string]float64 {
	nested := r.Record(key)
	out := make(map[string]float64, len(nested))
	for k := range nested {
		if f, ok := nested.float(k); ok {
			out[k] = f
		}
	}
	return out
}
