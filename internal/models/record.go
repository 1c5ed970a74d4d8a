// Package models defines the domain types for dagaz.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Record is one flat row fetched from the platform API.
// Values are JSON scalars: string, float64, bool or nil.
// Records are read-only once they enter a source.
type Record map[string]any

// Value returns the raw field value.
func (r Record) Value(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// String renders a field as text. Missing and null fields are "".
func (r Record) String(field string) string {
	return Stringify(r[field])
}

// ID returns the record identity under idField.
func (r Record) ID(idField string) string {
	return r.String(idField)
}

// Time parses a timestamp field. ok is false for missing, null or unparseable values.
func (r Record) Time(field string) (time.Time, bool) {
	switch v := r[field].(type) {
	case string:
		return ParseTime(v)
	case float64:
		// Epoch milliseconds.
		return time.UnixMilli(int64(v)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Number parses a numeric field, accepting numeric strings.
func (r Record) Number(field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// With returns a copy of r with field set to v.
func (r Record) With(field string, v any) Record {
	out := make(Record, len(r)+1)
	for k, val := range r {
		out[k] = val
	}
	out[field] = v
	return out
}

// Stringify renders a JSON scalar the way the dashboard displays it.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the platform emits.
// Values without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
