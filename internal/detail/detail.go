// Package detail resolves a selected record for the detail dialog.
package detail

import (
	"sync"
	"time"

	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/models"
)

// Field is one labelled line of a detail payload.
type Field struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Selection holds at most one selected record, by id.
type Selection struct {
	mu sync.Mutex
	id string
	ok bool
}

// Select replaces the current selection with r.
func (s *Selection) Select(r models.Record, idField string) {
	s.SelectID(r.ID(idField))
}

// SelectID replaces the current selection with id.
func (s *Selection) SelectID(id string) {
	s.mu.Lock()
	s.id, s.ok = id, true
	s.mu.Unlock()
}

// Clear removes the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.id, s.ok = "", false
	s.mu.Unlock()
}

// ID returns the selected id.
func (s *Selection) ID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.ok
}

// Resolve finds the selected record in records. A selection that is not in
// records resolves to an empty record, so rendering degrades to placeholders.
func (s *Selection) Resolve(records []models.Record, idField string) (models.Record, bool) {
	id, ok := s.ID()
	if !ok {
		return nil, false
	}
	if r, found := Lookup(records, idField, id); found {
		return r, true
	}
	return models.Record{idField: id}, true
}

// Lookup returns the first record whose idField equals id.
func Lookup(records []models.Record, idField, id string) (models.Record, bool) {
	for _, r := range records {
		if r.ID(idField) == id {
			return r, true
		}
	}
	return nil, false
}

// Render lays r out along cols. Missing fields render as grid.Placeholder.
func Render(r models.Record, cols []grid.Column, loc *time.Location) []Field {
	out := make([]Field, 0, len(cols))
	for _, col := range cols {
		if !col.Data() {
			continue
		}
		out = append(out, Field{
			Field: col.Field,
			Label: col.Label,
			Value: grid.Format(col, r, loc),
		})
	}
	return out
}
