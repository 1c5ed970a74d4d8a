package filter

import (
	"math"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/models"
)

// Predicate reports whether a record passes a filter.
type Predicate func(models.Record) bool

// Dimension is one active filter check.
type Dimension struct {
	Name  string
	Match Predicate
}

const dayLayout = "2006-01-02"

// Compose builds the predicate for s evaluated against the current time.
func Compose(cfg Config, s State) Predicate {
	return ComposeAt(cfg, s, time.Now())
}

// ComposeAt builds the predicate for s. Dimensions run in order
// text, categorical, date range, preset, and stop at the first failure.
func ComposeAt(cfg Config, s State, now time.Time) Predicate {
	dims := Dimensions(cfg, s, now)
	if len(dims) == 0 {
		return func(models.Record) bool { return true }
	}
	return func(r models.Record) bool {
		for _, d := range dims {
			if !d.Match(r) {
				return false
			}
		}
		return true
	}
}

// Dimensions returns the active checks of s in evaluation order.
func Dimensions(cfg Config, s State, now time.Time) []Dimension {
	var dims []Dimension

	if q := strings.ToLower(strings.TrimSpace(s.Query)); q != "" && len(cfg.TextFields) > 0 {
		fields := cfg.TextFields
		dims = append(dims, Dimension{Name: "text", Match: func(r models.Record) bool {
			return strings.Contains(haystack(r, fields), q)
		}})
	}

	for _, cat := range cfg.Categories {
		want, ok := s.Categories[cat.Field]
		if !ok || !selected(want) {
			continue
		}
		dims = append(dims, Dimension{Name: cat.Field, Match: categoryMatch(cat, want)})
	}

	if cfg.DateField == "" {
		return dims
	}

	loc := cfg.location()
	start, hasStart := parseDay(s.StartDate, loc)
	end, hasEnd := parseDay(s.EndDate, loc)
	if hasStart || hasEnd {
		end = endOfDay(end)
		field := cfg.DateField
		dims = append(dims, Dimension{Name: "date", Match: func(r models.Record) bool {
			t, ok := r.Time(field)
			if !ok {
				return false
			}
			if hasStart && t.Before(start) {
				return false
			}
			if hasEnd && t.After(end) {
				return false
			}
			return true
		}})
	}

	if days, ok := s.Preset.Days(); ok {
		field := cfg.DateField
		dims = append(dims, Dimension{Name: "preset", Match: func(r models.Record) bool {
			t, ok := r.Time(field)
			if !ok {
				return false
			}
			return daysBetween(now, t) <= days
		}})
	}

	return dims
}

func haystack(r models.Record, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = r.String(f)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func categoryMatch(cat Category, want string) Predicate {
	field := cat.Field
	if cat.Fold {
		want = strings.ToLower(want)
		return func(r models.Record) bool {
			return strings.ToLower(r.String(field)) == want
		}
	}
	return func(r models.Record) bool {
		return r.String(field) == want
	}
}

// parseDay reads a YYYY-MM-DD bound as midnight in loc.
// Malformed input is no bound.
func parseDay(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// endOfDay returns 23:59:59.999 of the day starting at t.
func endOfDay(t time.Time) time.Time {
	return t.AddDate(0, 0, 1).Add(-time.Millisecond)
}

func daysBetween(now, t time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(float64(d) / float64(24*time.Hour)))
}
