// Package viewservice coordinates the view catalog, record sources, grid
// presentation and the review-document workflow behind one API used by
// the HTTP handlers, the MCP tools and the CLI.
package viewservice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/review"
	"github.com/starford/dagaz/internal/source"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/views"
)

// Platform is the subset of the platform API the service calls.
type Platform interface {
	source.Fetcher
	review.Submitter
	GetReviewDocument(ctx context.Context, ref remote.DocumentRef) (*remote.DocumentFile, error)
	Analytics(ctx context.Context) (*remote.Analytics, error)
	RecentActivity(ctx context.Context) (*remote.Activity, error)
	Balance(ctx context.Context) (*remote.Balance, error)
}

// Publisher receives notifications for connected dashboards.
type Publisher interface {
	Publish(event sse.Event)
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize sets the default grid page size.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithAutoCloseDelay sets how long a successful return dialog stays open.
func WithAutoCloseDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.autoClose = d
		}
	}
}

// WithPublisher sets the event sink for document returns.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock overrides the clock used for relative date presets and export names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates view queries and document workflows.
type Service struct {
	catalog  *views.Catalog
	sources  *source.Registry
	platform Platform
	journal  journal.Journal
	events   Publisher
	log      *slog.Logger

	pageSize  int
	autoClose time.Duration
	now       func() time.Time

	mu      sync.Mutex
	dialogs map[remote.DocumentRef]*review.Dialog
}

// New creates a service. journal may be nil to skip recording returns.
func New(catalog *views.Catalog, sources *source.Registry, platform Platform, jrnl journal.Journal, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		sources:   sources,
		platform:  platform,
		journal:   jrnl,
		log:       logger.With("component", "viewservice"),
		pageSize:  grid.DefaultPageSize,
		autoClose: review.DefaultAutoCloseDelay,
		now:       time.Now,
		dialogs:   make(map[remote.DocumentRef]*review.Dialog),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ViewInfo describes a view to clients.
type ViewInfo struct {
	Name       views.Name         `json:"name"`
	Title      string             `json:"title"`
	Resource   string             `json:"resource"`
	IDField    string             `json:"id_field"`
	Columns    []grid.Column      `json:"columns"`
	TextFields []string           `json:"text_fields"`
	Categories []filter.Category  `json:"categories"`
	DateField  string             `json:"date_field,omitempty"`
	Presets    bool               `json:"presets"`
	Status     *views.StatusStyle `json:"status,omitempty"`
}

// Views lists the catalog in display order.
func (s *Service) Views() []ViewInfo {
	defs := s.catalog.List()
	out := make([]ViewInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, viewInfo(def))
	}
	return out
}

// View describes one view.
func (s *Service) View(name views.Name) (ViewInfo, error) {
	def, err := s.catalog.Get(name)
	if err != nil {
		return ViewInfo{}, err
	}
	return viewInfo(def), nil
}

func viewInfo(def views.Definition) ViewInfo {
	cats := def.Filter.Categories
	if cats == nil {
		cats = []filter.Category{}
	}
	return ViewInfo{
		Name:       def.Name,
		Title:      def.Title,
		Resource:   def.Resource,
		IDField:    def.IDField,
		Columns:    def.Columns,
		TextFields: def.Filter.TextFields,
		Categories: cats,
		DateField:  def.Filter.DateField,
		Presets:    def.Presets,
		Status:     def.Status,
	}
}

// Location returns the zone used for day bounds and date display.
func (s *Service) Location() *time.Location { return s.catalog.Location() }

// PageSize returns the default page size.
func (s *Service) PageSize() int { return s.pageSize }
