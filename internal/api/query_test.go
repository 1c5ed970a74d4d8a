package api

import (
	"net/url"
	"testing"

	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
)

func TestParseQuery(t *testing.T) {
	v, _ := url.ParseQuery("q=ada&f.status=active&f.=x&start=2024-01-01&end=2024-01-31&preset=WEEK&quick=lov&sort=email&page=2&page_size=900")
	q, err := parseQuery(v)
	if err != nil {
		t.Fatalf("parseQuery: %v", err)
	}
	if q.Filter.Query != "ada" || q.Filter.StartDate != "2024-01-01" || q.Filter.EndDate != "2024-01-31" {
		t.Errorf("filter = %+v", q.Filter)
	}
	if q.Filter.Preset != filter.PresetWeek {
		t.Errorf("preset = %q", q.Filter.Preset)
	}
	if len(q.Filter.Categories) != 1 || q.Filter.Categories["status"] != "active" {
		t.Errorf("categories = %v", q.Filter.Categories)
	}
	if q.SortField != "email" || q.SortDir != grid.SortAsc {
		t.Errorf("sort = %s %s", q.SortField, q.SortDir)
	}
	if q.Page != 2 || q.PageSize != maxPageSize || q.Quick != "lov" {
		t.Errorf("paging = %d/%d quick %q", q.Page, q.PageSize, q.Quick)
	}
}

func TestParseQueryEmptyIsIdentity(t *testing.T) {
	q, err := parseQuery(url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	if q.Filter.Categories != nil || q.Filter.Preset != "" || q.SortField != "" || q.Page != 0 {
		t.Errorf("query = %+v", q)
	}
}
