package filter

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/models"
)

// Derive returns the records passing s, in source order unless cfg declares a
// default sort. The input slice is never modified.
func Derive(records []models.Record, cfg Config, s State) []models.Record {
	return DeriveAt(records, cfg, s, time.Now())
}

// DeriveAt is Derive with an explicit clock for relative presets.
func DeriveAt(records []models.Record, cfg Config, s State, now time.Time) []models.Record {
	pred := ComposeAt(cfg, s, now)
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	if cfg.DefaultSort != "" {
		sortNewestFirst(out, cfg.DefaultSort)
	}
	return out
}

// sortNewestFirst is a stable descending sort with unparseable timestamps last.
func sortNewestFirst(rows []models.Record, field string) {
	slices.SortStableFunc(rows, func(a, b models.Record) int {
		ta, oka := a.Time(field)
		tb, okb := b.Time(field)
		switch {
		case oka && okb:
			return tb.Compare(ta)
		case oka:
			return -1
		case okb:
			return 1
		default:
			return 0
		}
	})
}

// Options lists the distinct non-empty values of every categorical selector,
// sorted ascending. Folded selectors list lowercased values.
func Options(records []models.Record, cfg Config) map[string][]string {
	out := make(map[string][]string, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		seen := make(map[string]struct{})
		values := []string{}
		for _, r := range records {
			v := r.String(cat.Field)
			if cat.Fold {
				v = strings.ToLower(v)
			}
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
		sort.Strings(values)
		out[cat.Field] = values
	}
	return out
}
