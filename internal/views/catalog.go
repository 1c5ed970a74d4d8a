package views

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/remote"
)

// Catalog holds the active view definitions. Reads are lock-free and
// reloads swap the whole set.
type Catalog struct {
	loc   *time.Location
	state atomic.Pointer[catalogState]
}

type catalogState struct {
	defs  map[Name]Definition
	order []Name
}

// NewCatalog returns a catalog of the built-in views. loc resolves calendar
// days for date filters; nil means UTC.
func NewCatalog(loc *time.Location) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	c := &Catalog{loc: loc}
	c.state.Store(c.build(Defaults(), defaultOrder))
	return c
}

// Location returns the zone used for day bounds and date display.
func (c *Catalog) Location() *time.Location { return c.loc }

// Get returns the definition of name.
func (c *Catalog) Get(name Name) (Definition, error) {
	def, ok := c.state.Load().defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("views: %q: %w", name, apperr.ErrUnknownView)
	}
	return def, nil
}

// Names returns view names in display order.
func (c *Catalog) Names() []Name {
	return append([]Name(nil), c.state.Load().order...)
}

// List returns every definition in display order.
func (c *Catalog) List() []Definition {
	st := c.state.Load()
	out := make([]Definition, 0, len(st.order))
	for _, n := range st.order {
		out = append(out, st.defs[n])
	}
	return out
}

// Load applies the overrides in path on top of the built-in views and
// returns the names whose definition changed. A missing file restores the
// built-ins. On error the current definitions are kept.
func (c *Catalog) Load(path string) ([]Name, error) {
	defs, order := Defaults(), append([]Name(nil), defaultOrder...)

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("views: read %s: %w", path, err)
		default:
			var file overrideFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("views: parse %s: %w", path, err)
			}
			if order, err = file.apply(defs, order); err != nil {
				return nil, fmt.Errorf("views: %s: %w", path, err)
			}
		}
	}

	next := c.build(defs, order)
	prev := c.state.Swap(next)
	return changed(prev, next), nil
}

func (c *Catalog) build(defs map[Name]Definition, order []Name) *catalogState {
	for n, def := range defs {
		def.Filter.Location = c.loc
		defs[n] = def
	}
	return &catalogState{defs: defs, order: order}
}

func changed(prev, next *catalogState) []Name {
	var out []Name
	for n, def := range next.defs {
		if old, ok := prev.defs[n]; !ok || !reflect.DeepEqual(old, def) {
			out = append(out, n)
		}
	}
	for n := range prev.defs {
		if _, ok := next.defs[n]; !ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// overrideFile is the YAML layout of the definitions file.
//
//	views:
//	  users:
//	    text_fields: [fullName, email, locale]
//	  trials:
//	    title: Trials
//	    path: getAll-trials
//	    envelope: trials
//	    id_field: id
//	    columns:
//	      - {field: email, label: Email, kind: text}
type overrideFile struct {
	Views map[Name]override `yaml:"views"`
}

type override struct {
	Title       string            `yaml:"title"`
	Resource    string            `yaml:"resource"`
	Path        string            `yaml:"path"`
	Envelope    string            `yaml:"envelope"`
	IDField     string            `yaml:"id_field"`
	TextFields  []string          `yaml:"text_fields"`
	Categories  []filter.Category `yaml:"categories"`
	DateField   string            `yaml:"date_field"`
	DefaultSort *string           `yaml:"default_sort"`
	Columns     []grid.Column     `yaml:"columns"`
	Detail      []grid.Column     `yaml:"detail"`
	StatusField string            `yaml:"status_field"`
	StatusTones map[string]Tone   `yaml:"status_tones"`
	Presets     *bool             `yaml:"presets"`
}

func (f overrideFile) apply(defs map[Name]Definition, order []Name) ([]Name, error) {
	names := make([]Name, 0, len(f.Views))
	for n := range f.Views {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, n := range names {
		def, exists := defs[n]
		if !exists {
			def = Definition{Name: n, Title: string(n), Resource: string(n)}
			def.Endpoint.View = string(n)
			order = append(order, n)
		}
		def = f.Views[n].merge(def)
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("view %q: %w", n, err)
		}
		defs[n] = def
	}
	return order, nil
}

func (o override) merge(def Definition) Definition {
	if o.Title != "" {
		def.Title = o.Title
	}
	if o.Resource != "" {
		def.Resource = o.Resource
	}
	if o.Path != "" {
		def.Endpoint.Path = o.Path
	}
	if o.Envelope != "" {
		def.Endpoint.Envelope = o.Envelope
	}
	if o.IDField != "" {
		def.IDField = o.IDField
	}
	if o.TextFields != nil {
		def.Filter.TextFields = o.TextFields
	}
	if o.Categories != nil {
		def.Filter.Categories = o.Categories
	}
	if o.DateField != "" {
		def.Filter.DateField = o.DateField
	}
	if o.DefaultSort != nil {
		def.Filter.DefaultSort = *o.DefaultSort
	}
	if o.Columns != nil {
		def.Columns = o.Columns
	}
	if o.Detail != nil {
		def.Detail = o.Detail
	}
	if o.StatusTones != nil {
		field := o.StatusField
		if field == "" && def.Status != nil {
			field = def.Status.Field
		}
		def.Status = &StatusStyle{Field: field, Tones: o.StatusTones, Default: ToneInfo}
	}
	if o.Presets != nil {
		def.Presets = *o.Presets
	}
	return def
}

// Validate checks a definition is usable by the engine.
func (d *Definition) Validate() error {
	if err := validation.ValidateStruct(d,
		validation.Field(&d.IDField, validation.Required),
		validation.Field(&d.Columns, validation.Required),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&d.Endpoint,
		validation.Field(&d.Endpoint.Path, validation.Required),
		validation.Field(&d.Endpoint.Shape, validation.In(remote.Shape(""), remote.ShapeList, remote.ShapeByUser)),
	); err != nil {
		return err
	}
	for i, col := range d.Columns {
		if col.Field == "" || !col.Kind.Valid() {
			return fmt.Errorf("column %d: field and a valid kind are required", i)
		}
	}
	for i, cat := range d.Filter.Categories {
		if cat.Field == "" {
			return fmt.Errorf("category %d: field is required", i)
		}
	}
	return nil
}
