package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/viewservice"
)

const (
	categoryPrefix = "f."
	maxPageSize    = 500
)

// parseQuery reads a view query from URL parameters:
//
//	q, f.<field>, start, end, preset, quick, sort=<field>[:asc|desc], page, page_size
//
// page is zero-based.
func parseQuery(v url.Values) (viewservice.Query, error) {
	q := viewservice.Query{
		Filter: filter.State{
			Query:     v.Get("q"),
			StartDate: v.Get("start"),
			EndDate:   v.Get("end"),
		},
		Quick: v.Get("quick"),
	}
	if p := v.Get("preset"); p != "" {
		q.Filter.Preset = filter.ParsePreset(p)
	}
	for key, vals := range v {
		field, ok := strings.CutPrefix(key, categoryPrefix)
		if !ok || field == "" || len(vals) == 0 {
			continue
		}
		q.Filter = q.Filter.WithCategory(field, vals[0])
	}

	if s := strings.TrimSpace(v.Get("sort")); s != "" {
		field, dir, found := strings.Cut(s, ":")
		q.SortField = field
		q.SortDir = grid.SortAsc
		if found {
			q.SortDir = grid.ParseDirection(dir)
			if q.SortDir == grid.SortNone && dir != "" {
				return viewservice.Query{}, apperr.Validation("sort", "direction must be asc or desc")
			}
		}
	}

	var err error
	if q.Page, err = intParam(v, "page", 0); err != nil {
		return viewservice.Query{}, err
	}
	if q.PageSize, err = intParam(v, "page_size", maxPageSize); err != nil {
		return viewservice.Query{}, err
	}
	return q, nil
}

// intParam parses a non-negative integer parameter. Missing is 0. A positive
// max caps the value.
func intParam(v url.Values, name string, max int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation(name, "must be a non-negative integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}
