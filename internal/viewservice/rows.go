package viewservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/detail"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/source"
	"github.com/starford/dagaz/internal/views"
)

// Query is a complete request against one view: the filter state plus the
// grid's quick filter, sort and paging.
type Query struct {
	Filter    filter.State
	Quick     string
	SortField string
	SortDir   grid.Direction
	Page      int
	PageSize  int
}

// Row is one formatted grid row.
type Row struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
	Tone   views.Tone        `json:"tone,omitempty"`
}

// Sort is the active sort of a page.
type Sort struct {
	Field     string         `json:"field,omitempty"`
	Direction grid.Direction `json:"direction,omitempty"`
}

// Page is one page of a filtered view.
type Page struct {
	View     views.Name          `json:"view"`
	Rows     []Row               `json:"rows"`
	Total    int                 `json:"total"`
	Filtered int                 `json:"filtered"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Pages    int                 `json:"pages"`
	Sort     Sort                `json:"sort"`
	Options  map[string][]string `json:"options"`
	LoadedAt *time.Time          `json:"loaded_at,omitempty"`
	Stale    bool                `json:"stale"`
	Error    string              `json:"error,omitempty"`
}

// snapshot returns the records of name, fetching them on first use. A fetch
// failure is reported through the snapshot rather than as an error so the
// view still renders its previous (or empty) data.
func (s *Service) snapshot(ctx context.Context, name views.Name) (views.Definition, *source.Snapshot, error) {
	def, err := s.catalog.Get(name)
	if err != nil {
		return views.Definition{}, nil, err
	}
	src, err := s.sources.Source(name)
	if err != nil {
		return views.Definition{}, nil, err
	}
	snap, err := src.Ensure(ctx)
	switch {
	case err == nil:
		return def, snap, nil
	case errors.Is(err, apperr.ErrFetch) && snap != nil:
		return def, snap, nil
	case errors.Is(err, source.ErrDiscarded):
		return def, src.Snapshot(), nil
	default:
		return views.Definition{}, nil, fmt.Errorf("viewservice: load %s: %w", name, err)
	}
}

// Adapter builds a grid over the derived view of q.
func (s *Service) Adapter(ctx context.Context, name views.Name, q Query) (*grid.Adapter, *source.Snapshot, error) {
	def, snap, err := s.snapshot(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.adapter(def, snap.Records, q)
	if err != nil {
		return nil, nil, err
	}
	return a, snap, nil
}

func (s *Service) adapter(def views.Definition, records []models.Record, q Query) (*grid.Adapter, error) {
	a := s.newGrid(def)
	if q.PageSize > 0 {
		a.SetPageSize(q.PageSize)
	}
	if q.SortField != "" {
		if err := a.SetSort(q.SortField, q.SortDir); err != nil {
			return nil, err
		}
	}
	a.QuickFilter(q.Quick)
	a.SetRows(s.derive(def, records, q.Filter))
	a.SetPage(q.Page)
	return a, nil
}

func (s *Service) newGrid(def views.Definition) *grid.Adapter {
	return grid.NewAdapter(def.Columns, grid.WithPageSize(s.pageSize), grid.WithLocation(s.catalog.Location()))
}

// derive applies state to records. Relative presets only apply to views
// that offer them.
func (s *Service) derive(def views.Definition, records []models.Record, state filter.State) []models.Record {
	if !def.Presets {
		state.Preset = ""
	}
	return filter.DeriveAt(records, def.Filter, state, s.now())
}

// NewGrid returns an empty adapter over the columns of name.
func (s *Service) NewGrid(name views.Name) (*grid.Adapter, error) {
	def, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return s.newGrid(def), nil
}

// Derive returns the records of name that pass state, fetching on first use.
func (s *Service) Derive(ctx context.Context, name views.Name, state filter.State) ([]models.Record, *source.Snapshot, error) {
	def, snap, err := s.snapshot(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return s.derive(def, snap.Records, state), snap, nil
}

// Rows returns one page of the filtered view.
func (s *Service) Rows(ctx context.Context, name views.Name, q Query) (*Page, error) {
	def, snap, err := s.snapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	a, err := s.adapter(def, snap.Records, q)
	if err != nil {
		return nil, err
	}
	return s.page(def, snap, a), nil
}

// PageOf renders the current page of an existing adapter.
func (s *Service) PageOf(name views.Name, snap *source.Snapshot, a *grid.Adapter) (*Page, error) {
	def, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return s.page(def, snap, a), nil
}

func (s *Service) page(def views.Definition, snap *source.Snapshot, a *grid.Adapter) *Page {
	rows := a.Page()
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		row := Row{ID: r.ID(def.IDField), Values: a.Format(r)}
		if def.Status != nil {
			row.Tone = def.Tone(r.String(def.Status.Field))
		}
		out = append(out, row)
	}

	field, dir := a.Sort()
	p := &Page{
		View:     def.Name,
		Rows:     out,
		Total:    len(snap.Records),
		Filtered: a.Len(),
		Page:     a.PageIndex(),
		PageSize: a.PageSize(),
		Pages:    a.PageCount(),
		Sort:     Sort{Field: field, Direction: dir},
		Options:  filter.Options(snap.Records, def.Filter),
		Stale:    snap.Stale(),
	}
	if snap.Loaded {
		at := snap.LoadedAt
		p.LoadedAt = &at
	}
	if snap.Err != nil {
		p.Error = snap.Err.Error()
	}
	return p
}

// Options returns the categorical choices of name from its current records.
func (s *Service) Options(ctx context.Context, name views.Name) (map[string][]string, error) {
	def, snap, err := s.snapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	return filter.Options(snap.Records, def.Filter), nil
}

// RefreshResult reports a refetch.
type RefreshResult struct {
	View     views.Name `json:"view"`
	Records  int        `json:"records"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	Stale    bool       `json:"stale"`
	Error    string     `json:"error,omitempty"`
}

// Refresh refetches name. On a fetch failure the result describes the kept
// data and the error is returned alongside it.
func (s *Service) Refresh(ctx context.Context, name views.Name) (*RefreshResult, error) {
	if _, err := s.catalog.Get(name); err != nil {
		return nil, err
	}
	src, err := s.sources.Source(name)
	if err != nil {
		return nil, err
	}
	snap, err := src.Refresh(ctx)
	if snap == nil {
		snap = src.Snapshot()
	}
	res := &RefreshResult{View: name, Records: len(snap.Records), Stale: snap.Stale()}
	if snap.Loaded {
		at := snap.LoadedAt
		res.LoadedAt = &at
	}
	if err != nil && !errors.Is(err, source.ErrDiscarded) {
		res.Error = err.Error()
		return res, err
	}
	return res, nil
}

// RefreshAll refetches every view. Failures are joined.
func (s *Service) RefreshAll(ctx context.Context) error {
	return s.sources.RefreshAll(ctx)
}

// Export is a prepared grid export. Write streams it.
type Export struct {
	View        views.Name
	Filename    string
	ContentType string
	Format      string
	Rows        int
	// Stale is set when the rows come from an earlier load because the
	// latest refresh failed.
	Stale bool

	adapter *grid.Adapter
}

// Write streams every displayed row, ignoring pagination.
func (e *Export) Write(w io.Writer) error {
	err := e.adapter.Export(w, e.Format)
	exportsTotal.WithLabelValues(string(e.View), e.Format, result(err)).Inc()
	return err
}

// Export prepares an export of the filtered view in format.
func (s *Service) Export(ctx context.Context, name views.Name, q Query, format string) (*Export, error) {
	if format == "" {
		format = grid.FormatCSV
	}
	if format != grid.FormatCSV && format != grid.FormatXLSX {
		return nil, apperr.Validation("format", "must be csv or xlsx")
	}
	def, snap, err := s.snapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	if !snap.Loaded && snap.Err != nil {
		// Nothing was ever fetched; an empty file would read as "no rows".
		exportsTotal.WithLabelValues(string(name), format, "error").Inc()
		return nil, fmt.Errorf("viewservice: export %s: %w", name, snap.Err)
	}
	a, err := s.adapter(def, snap.Records, q)
	if err != nil {
		return nil, err
	}
	s.log.Info("export prepared", slog.String("view", string(name)), slog.String("format", format), slog.Int("rows", a.Len()))
	return &Export{
		View:        name,
		Filename:    grid.ExportFilename(def.Resource, format, s.now()),
		ContentType: grid.ContentType(format),
		Format:      format,
		Rows:        a.Len(),
		Stale:       snap.Stale(),
		adapter:     a,
	}, nil
}

// RecordDetail is the detail dialog payload of one record.
type RecordDetail struct {
	View   views.Name     `json:"view"`
	ID     string         `json:"id"`
	Found  bool           `json:"found"`
	Tone   views.Tone     `json:"tone,omitempty"`
	Fields []detail.Field `json:"fields"`
}

// Record resolves id in the current records of name. A record that is no
// longer present renders with placeholders.
func (s *Service) Record(ctx context.Context, name views.Name, id string) (*RecordDetail, error) {
	if id == "" {
		return nil, apperr.Validation("id", "is required")
	}
	def, snap, err := s.snapshot(ctx, name)
	if err != nil {
		return nil, err
	}

	r, found := detail.Lookup(snap.Records, def.IDField, id)
	if !found {
		r = models.Record{def.IDField: id}
	}

	out := &RecordDetail{
		View:   name,
		ID:     id,
		Found:  found,
		Fields: detail.Render(r, def.DetailColumns(), s.catalog.Location()),
	}
	if found && def.Status != nil {
		out.Tone = def.Tone(r.String(def.Status.Field))
	}
	return out, nil
}
