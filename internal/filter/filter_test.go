package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dagaz/internal/models"
)

var reviewCfg = Config{
	TextFields: []string{"organization_name", "project_name", "email", "document_type", "status"},
	Categories: []Category{
		{Field: "organization_name"},
		{Field: "project_name"},
		{Field: "document_type"},
		{Field: "status", Fold: true},
	},
	DateField: "createdAt",
}

func reviewDocs() []models.Record {
	return []models.Record{
		{"document_type_uuid": "d1", "organization_name": "Acme Corp", "project_name": "Launch", "email": "ann@acme.io", "document_type": "brand", "status": "Pending", "createdAt": "2024-01-10T09:00:00Z"},
		{"document_type_uuid": "d2", "organization_name": "Foo Inc", "project_name": "Growth", "email": "bob@foo.io", "document_type": "gtm", "status": "approved", "createdAt": "2024-01-20T09:00:00Z"},
		{"document_type_uuid": "d3", "organization_name": "Acme Corp", "project_name": "Growth", "email": "cy@acme.io", "document_type": "gtm", "status": "rejected", "createdAt": nil},
		{"document_type_uuid": "d4", "organization_name": "Bar LLC", "project_name": "Launch", "email": "di@bar.io", "document_type": "brand", "status": "PENDING", "createdAt": "2024-02-03T09:00:00Z"},
	}
}

func ids(rows []models.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.String("document_type_uuid")
	}
	return out
}

func TestDerivePurity(t *testing.T) {
	records := reviewDocs()
	s := State{Query: "acme", StartDate: "2024-01-01"}

	first := Derive(records, reviewCfg, s)
	second := Derive(records, reviewCfg, s)
	assert.Equal(t, first, second)
	assert.Equal(t, reviewDocs(), records, "input must not be mutated")
}

func TestDeriveConjunction(t *testing.T) {
	records := reviewDocs()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	states := []State{
		{Query: "growth", Categories: map[string]string{"status": "APPROVED"}},
		{Categories: map[string]string{"document_type": "brand", "status": "pending"}, EndDate: "2024-01-31"},
		{Query: "acme", StartDate: "2024-01-05", Preset: PresetYear},
	}

	for _, s := range states {
		dims := Dimensions(reviewCfg, s, now)
		require.NotEmpty(t, dims)
		for _, r := range DeriveAt(records, reviewCfg, s, now) {
			for _, d := range dims {
				assert.Truef(t, d.Match(r), "record %s fails dimension %s", r.String("document_type_uuid"), d.Name)
			}
		}
	}
}

func TestClearIsIdentity(t *testing.T) {
	records := reviewDocs()
	s := State{
		Query:      "acme",
		Categories: map[string]string{"status": "pending"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Preset:     PresetWeek,
	}
	assert.Equal(t, records, Derive(records, reviewCfg, s.Clear()))
	assert.False(t, s.Clear().Active(reviewCfg))
}

func TestAllSentinelIsInactive(t *testing.T) {
	records := reviewDocs()
	s := State{Categories: map[string]string{"organization_name": All, "status": ""}}
	assert.Equal(t, records, Derive(records, reviewCfg, s))
}

func TestEndOfDayBoundary(t *testing.T) {
	cfg := Config{DateField: "createdAt"}
	s := State{EndDate: "2024-01-31"}
	records := []models.Record{
		{"id": "edge", "createdAt": "2024-01-31T23:59:59.999Z"},
		{"id": "late", "createdAt": "2024-02-01T00:00:00.000Z"},
	}

	got := Derive(records, cfg, s)
	require.Len(t, got, 1)
	assert.Equal(t, "edge", got[0].String("id"))
}

func TestDateBoundsUseLocation(t *testing.T) {
	ny := time.FixedZone("EST", -5*60*60)
	cfg := Config{DateField: "createdAt", Location: ny}
	records := []models.Record{
		// 2024-01-31 22:00 in New York.
		{"id": "a", "createdAt": "2024-02-01T03:00:00Z"},
	}
	assert.Len(t, Derive(records, cfg, State{EndDate: "2024-01-31"}), 1)
	assert.Empty(t, Derive(records, Config{DateField: "createdAt"}, State{EndDate: "2024-01-31"}))
}

func TestMalformedDateIsNoBound(t *testing.T) {
	records := reviewDocs()
	for _, s := range []State{
		{StartDate: "not-a-date"},
		{EndDate: "2024-13-45"},
		{StartDate: "01/02/2024", EndDate: "yesterday"},
	} {
		assert.Equal(t, records, Derive(records, reviewCfg, s), "state %+v", s)
	}
}

func TestNullTimestampFailsActiveDateRange(t *testing.T) {
	got := Derive(reviewDocs(), reviewCfg, State{StartDate: "2000-01-01"})
	assert.NotContains(t, ids(got), "d3")
	assert.Len(t, got, 3)
}

func TestCategoricalCaseRules(t *testing.T) {
	records := reviewDocs()

	got := Derive(records, reviewCfg, State{Categories: map[string]string{"status": "pending"}})
	assert.Equal(t, []string{"d1", "d4"}, ids(got))

	got = Derive(records, reviewCfg, State{Categories: map[string]string{"organization_name": "acme corp"}})
	assert.Empty(t, got, "organization selector is case-sensitive")
}

func TestTextSearchIsCaseInsensitive(t *testing.T) {
	got := Derive(reviewDocs(), reviewCfg, State{Query: "  BOB@FOO  "})
	assert.Equal(t, []string{"d2"}, ids(got))
}

func TestShortCircuitStopsAtFirstFailure(t *testing.T) {
	cfg := Config{TextFields: []string{"name"}, Categories: []Category{{Field: "status"}}}
	dims := Dimensions(cfg, State{Query: "zzz", Categories: map[string]string{"status": "x"}}, time.Now())
	require.Len(t, dims, 2)
	assert.Equal(t, "text", dims[0].Name)
	assert.Equal(t, "status", dims[1].Name)

	calls := 0
	counted := dims[1].Match
	dims[1].Match = func(r models.Record) bool { calls++; return counted(r) }
	pred := func(r models.Record) bool {
		for _, d := range dims {
			if !d.Match(r) {
				return false
			}
		}
		return true
	}
	assert.False(t, pred(models.Record{"name": "abc", "status": "x"}))
	assert.Zero(t, calls)
}

func TestPresets(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	cfg := Config{DateField: "createdAt"}
	records := []models.Record{
		{"id": "hour", "createdAt": "2024-06-15T11:00:00Z"},
		{"id": "five", "createdAt": "2024-06-10T12:00:00Z"},
		{"id": "twenty", "createdAt": "2024-05-26T12:00:00Z"},
		{"id": "old", "createdAt": "2023-01-01T00:00:00Z"},
		{"id": "none"},
	}
	pick := func(p Preset) []string {
		var out []string
		for _, r := range DeriveAt(records, cfg, State{Preset: p}, now) {
			out = append(out, r.String("id"))
		}
		return out
	}

	assert.Equal(t, []string{"hour"}, pick(PresetToday))
	assert.Equal(t, []string{"hour", "five"}, pick(PresetWeek))
	assert.Equal(t, []string{"hour", "five", "twenty"}, pick(PresetMonth))
	assert.Equal(t, []string{"hour", "five", "twenty"}, pick(PresetYear))
	assert.Len(t, pick(PresetAll), 5)
	assert.Equal(t, PresetAll, ParsePreset("fortnight"))
	assert.Equal(t, PresetWeek, ParsePreset(" Week "))
}

func TestDefaultSortNewestFirstNullsLast(t *testing.T) {
	cfg := reviewCfg
	cfg.DefaultSort = "createdAt"

	got := Derive(reviewDocs(), cfg, State{})
	assert.Equal(t, []string{"d4", "d2", "d1", "d3"}, ids(got))
	assert.Equal(t, got, Derive(got, cfg, State{}), "derive must be idempotent")
}

func TestDeriveIdempotent(t *testing.T) {
	s := State{Query: "growth", Categories: map[string]string{"document_type": "gtm"}}
	once := Derive(reviewDocs(), reviewCfg, s)
	assert.Equal(t, once, Derive(once, reviewCfg, s))
}

func TestOptions(t *testing.T) {
	opts := Options(append(reviewDocs(), models.Record{"organization_name": "", "status": nil}), reviewCfg)

	assert.Equal(t, []string{"Acme Corp", "Bar LLC", "Foo Inc"}, opts["organization_name"])
	assert.Equal(t, []string{"Growth", "Launch"}, opts["project_name"])
	assert.Equal(t, []string{"approved", "pending", "rejected"}, opts["status"])
	assert.Equal(t, []string{}, Options(nil, reviewCfg)["status"])
}

func TestCategoryFilterSelectsOneStatus(t *testing.T) {
	cfg := Config{
		TextFields: []string{"fullName", "email"},
		Categories: []Category{{Field: "status", Fold: true}},
		DateField:  "createdAt",
	}
	users := []models.Record{
		{"id": "1", "status": "active"},
		{"id": "2", "status": "pending"},
		{"id": "3", "status": "inactive"},
	}
	got := Derive(users, cfg, State{Categories: map[string]string{"status": "active"}})
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].String("id"))
}

func TestTextSearchMatchesOrganizationName(t *testing.T) {
	cfg := Config{TextFields: []string{"organization_name"}, DateField: "createdAt"}
	orgs := []models.Record{
		{"organization_name": "Acme Corp"},
		{"organization_name": "Foo Inc"},
	}
	got := Derive(orgs, cfg, State{Query: "acme"})
	require.Len(t, got, 1)
	assert.Equal(t, "Acme Corp", got[0].String("organization_name"))
}

func TestDateRangeKeepsOnlyDaysInside(t *testing.T) {
	cfg := Config{DateField: "createdAt"}
	records := []models.Record{
		{"createdAt": "2023-12-31"},
		{"createdAt": "2024-01-15"},
		{"createdAt": "2024-02-01"},
	}
	got := Derive(records, cfg, State{StartDate: "2024-01-01", EndDate: "2024-01-31"})
	require.Len(t, got, 1)
	assert.Equal(t, "2024-01-15", got[0].String("createdAt"))
}
