// Package filter composes per-view filter state into a single record predicate
// and derives filtered views from a record source.
package filter

import (
	"strings"
	"time"
)

// All is the sentinel value of an inactive categorical selector.
const All = "all"

// Category declares one categorical selector of a view.
type Category struct {
	Field string `yaml:"field" json:"field"`
	Label string `yaml:"label" json:"label"`
	// Fold compares lowercased values. Status-like fields set it.
	Fold bool `yaml:"fold" json:"fold"`
}

// Config is the per-view filter declaration.
type Config struct {
	TextFields []string
	Categories []Category
	DateField  string
	// DefaultSort names a timestamp field sorted newest first. Empty keeps source order.
	DefaultSort string
	// Location resolves calendar days for date bounds and presets. Nil means UTC.
	Location *time.Location
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Category returns the selector declared for field.
func (c Config) Category(field string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Field == field {
			return cat, true
		}
	}
	return Category{}, false
}

// Preset is a relative date range measured back from now.
type Preset string

const (
	PresetAll   Preset = "all"
	PresetToday Preset = "today"
	PresetWeek  Preset = "week"
	PresetMonth Preset = "month"
	PresetYear  Preset = "year"
)

// ParsePreset maps user input to a preset. Unknown input is PresetAll.
func ParsePreset(s string) Preset {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetToday, PresetWeek, PresetMonth, PresetYear:
		return p
	default:
		return PresetAll
	}
}

// Days returns the day window of the preset.
func (p Preset) Days() (int, bool) {
	switch p {
	case PresetToday:
		return 1, true
	case PresetWeek:
		return 7, true
	case PresetMonth:
		return 30, true
	case PresetYear:
		return 365, true
	default:
		return 0, false
	}
}

// State is the user's current filter input for one view.
// The zero value is the identity filter.
type State struct {
	Query      string            `json:"q,omitempty"`
	Categories map[string]string `json:"filters,omitempty"`
	StartDate  string            `json:"start,omitempty"`
	EndDate    string            `json:"end,omitempty"`
	Preset     Preset            `json:"preset,omitempty"`
}

// Clear returns the default state.
func (s State) Clear() State {
	return State{}
}

// WithCategory returns a copy of s with field set to value.
func (s State) WithCategory(field, value string) State {
	cats := make(map[string]string, len(s.Categories)+1)
	for k, v := range s.Categories {
		cats[k] = v
	}
	cats[field] = value
	s.Categories = cats
	return s
}

// Active reports whether any dimension would filter under cfg.
func (s State) Active(cfg Config) bool {
	return len(Dimensions(cfg, s, time.Now())) > 0
}

func selected(v string) bool {
	return v != "" && v != All
}
