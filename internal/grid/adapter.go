package grid

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// DefaultPageSize is the page size of every dashboard grid.
const DefaultPageSize = 10

// Direction is a column sort direction.
type Direction string

const (
	SortNone Direction = ""
	SortAsc  Direction = "asc"
	SortDesc Direction = "desc"
)

// ParseDirection maps user input to a direction. Unknown input is SortNone.
func ParseDirection(s string) Direction {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case SortAsc:
		return SortAsc
	case SortDesc:
		return SortDesc
	default:
		return SortNone
	}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPageSize sets the page size. Non-positive sizes keep the default.
func WithPageSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// WithLocation sets the zone used to display dates.
func WithLocation(loc *time.Location) Option {
	return func(a *Adapter) {
		a.loc = locOrUTC(loc)
	}
}

// Adapter holds presentation state over a derived view. It never modifies
// the rows it is given. It is not safe for concurrent use; see Handle.
type Adapter struct {
	columns  []Column
	loc      *time.Location
	pageSize int

	rows    []models.Record
	display []models.Record

	page      int
	sortField string
	sortDir   Direction
	quick     string
}

// NewAdapter creates an adapter with no rows.
func NewAdapter(columns []Column, opts ...Option) *Adapter {
	a := &Adapter{
		columns:  columns,
		loc:      time.UTC,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Columns returns the declared columns.
func (a *Adapter) Columns() []Column {
	return a.columns
}

// SetRows replaces the row set and keeps the current page, clamped to the new size.
func (a *Adapter) SetRows(rows []models.Record) {
	a.rows = rows
	a.refresh()
}

// QuickFilter narrows the displayed rows to those containing text in any
// data column.
func (a *Adapter) QuickFilter(text string) {
	a.quick = strings.ToLower(strings.TrimSpace(text))
	a.refresh()
}

// ToggleSort cycles field through ascending, descending and unsorted.
// Selecting a different column starts at ascending.
func (a *Adapter) ToggleSort(field string) error {
	if _, err := a.sortColumn(field); err != nil {
		return err
	}
	switch {
	case a.sortField != field || a.sortDir == SortNone:
		a.sortField, a.sortDir = field, SortAsc
	case a.sortDir == SortAsc:
		a.sortDir = SortDesc
	default:
		a.sortField, a.sortDir = "", SortNone
	}
	a.refresh()
	return nil
}

// SetSort sorts by field in dir. SortNone clears the sort.
func (a *Adapter) SetSort(field string, dir Direction) error {
	if dir == SortNone {
		a.sortField, a.sortDir = "", SortNone
		a.refresh()
		return nil
	}
	if _, err := a.sortColumn(field); err != nil {
		return err
	}
	a.sortField, a.sortDir = field, dir
	a.refresh()
	return nil
}

// Sort returns the active sort.
func (a *Adapter) Sort() (string, Direction) {
	return a.sortField, a.sortDir
}

// SetPage moves to page i, clamped to the available pages.
func (a *Adapter) SetPage(i int) {
	a.page = i
	a.clamp()
}

// SetPageSize changes the page size. Non-positive sizes reset to the default.
func (a *Adapter) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	a.pageSize = n
	a.clamp()
}

// PageIndex returns the zero-based current page.
func (a *Adapter) PageIndex() int { return a.page }

// PageSize returns the page size.
func (a *Adapter) PageSize() int { return a.pageSize }

// PageCount returns the number of pages, 0 when there are no rows.
func (a *Adapter) PageCount() int {
	return (len(a.display) + a.pageSize - 1) / a.pageSize
}

// Len returns the number of displayed rows across all pages.
func (a *Adapter) Len() int { return len(a.display) }

// Rows returns every displayed row in display order.
func (a *Adapter) Rows() []models.Record {
	return a.display
}

// Page returns the rows of the current page.
func (a *Adapter) Page() []models.Record {
	start := a.page * a.pageSize
	if start >= len(a.display) {
		return []models.Record{}
	}
	end := min(start+a.pageSize, len(a.display))
	return a.display[start:end]
}

// Format renders r for display through the adapter's columns.
func (a *Adapter) Format(r models.Record) map[string]string {
	out := make(map[string]string, len(a.columns))
	for _, col := range a.columns {
		if !col.Data() {
			continue
		}
		out[col.Field] = Format(col, r, a.loc)
	}
	return out
}

func (a *Adapter) sortColumn(field string) (Column, error) {
	for _, col := range a.columns {
		if col.Field != field {
			continue
		}
		if !col.Data() {
			return Column{}, fmt.Errorf("grid: sort: %w", apperr.Validation("sort", fmt.Sprintf("column %q is not sortable", field)))
		}
		return col, nil
	}
	return Column{}, fmt.Errorf("grid: sort: %w", apperr.Validation("sort", fmt.Sprintf("unknown column %q", field)))
}

func (a *Adapter) refresh() {
	out := make([]models.Record, 0, len(a.rows))
	for _, r := range a.rows {
		if a.quick == "" || a.quickMatch(r) {
			out = append(out, r)
		}
	}

	if a.sortDir != SortNone {
		if col, err := a.sortColumn(a.sortField); err == nil {
			desc := a.sortDir == SortDesc
			slices.SortStableFunc(out, func(x, y models.Record) int {
				c := compare(col, x, y)
				if desc {
					return -c
				}
				return c
			})
		}
	}

	a.display = out
	a.clamp()
}

func (a *Adapter) quickMatch(r models.Record) bool {
	for _, col := range a.columns {
		if !col.Data() {
			continue
		}
		if f := Format(col, r, a.loc); f != Placeholder && strings.Contains(strings.ToLower(f), a.quick) {
			return true
		}
		if strings.Contains(strings.ToLower(Value(col, r)), a.quick) {
			return true
		}
	}
	return false
}

func (a *Adapter) clamp() {
	last := a.PageCount() - 1
	if a.page > last {
		a.page = last
	}
	if a.page < 0 {
		a.page = 0
	}
}
