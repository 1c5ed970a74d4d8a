// Package grid implements the presentation side of a view: pagination,
// column sort, quick filter and export over a derived row set.
package grid

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/dagaz/internal/models"
)

// Placeholder renders missing values.
const Placeholder = "—"

// Kind selects how a column is formatted, compared and exported.
type Kind string

const (
	KindText   Kind = "text"
	KindStatus Kind = "status"
	KindDate   Kind = "date"
	KindNumber Kind = "number"
	KindMoney  Kind = "money"
	KindAction Kind = "action"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindStatus, KindDate, KindNumber, KindMoney, KindAction:
		return true
	}
	return false
}

// Column describes one grid column.
type Column struct {
	Field string `yaml:"field" json:"field"`
	Label string `yaml:"label" json:"label"`
	Kind  Kind   `yaml:"kind" json:"kind"`
}

// Data reports whether the column carries record data. Action columns do not
// take part in quick filter, sort or export.
func (c Column) Data() bool {
	return c.Kind != KindAction
}

const dateDisplayLayout = "2006-01-02 15:04"

// Format renders a cell for display. Every kind falls back to Placeholder.
func Format(col Column, r models.Record, loc *time.Location) string {
	raw := r.String(col.Field)
	if strings.TrimSpace(raw) == "" {
		return Placeholder
	}
	switch col.Kind {
	case KindStatus:
		// Casers are stateful, so each call gets its own.
		return cases.Title(language.Und).String(raw)
	case KindDate:
		if t, ok := r.Time(col.Field); ok {
			return t.In(locOrUTC(loc)).Format(dateDisplayLayout)
		}
		return raw
	case KindMoney:
		if d, ok := MajorUnits(r, col.Field); ok {
			return "$" + d.StringFixed(2)
		}
		return raw
	default:
		return raw
	}
}

// Value renders a cell for export and quick filter. Missing values are "".
func Value(col Column, r models.Record) string {
	switch col.Kind {
	case KindMoney:
		if d, ok := MajorUnits(r, col.Field); ok {
			return d.StringFixed(2)
		}
	case KindNumber:
		if n, ok := r.Number(col.Field); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	}
	return r.String(col.Field)
}

// MajorUnits reads an amount stored in cents and returns it in major units.
func MajorUnits(r models.Record, field string) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch v := r[field].(type) {
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, false
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return decimal.Decimal{}, false
	}
	return d.Shift(-2), true
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// compare orders two records by col. Missing or unparseable values sort first.
func compare(col Column, a, b models.Record) int {
	switch col.Kind {
	case KindNumber:
		na, oka := a.Number(col.Field)
		nb, okb := b.Number(col.Field)
		return compareParsed(oka, okb, func() int { return cmpFloat(na, nb) })
	case KindMoney:
		da, oka := MajorUnits(a, col.Field)
		db, okb := MajorUnits(b, col.Field)
		return compareParsed(oka, okb, func() int { return da.Cmp(db) })
	case KindDate:
		ta, oka := a.Time(col.Field)
		tb, okb := b.Time(col.Field)
		return compareParsed(oka, okb, func() int { return ta.Compare(tb) })
	default:
		return strings.Compare(strings.ToLower(a.String(col.Field)), strings.ToLower(b.String(col.Field)))
	}
}

func compareParsed(oka, okb bool, both func() int) int {
	switch {
	case oka && okb:
		return both()
	case oka:
		return 1
	case okb:
		return -1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
