// Package source holds the fetched record collection of each view.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/remote"
)

// ErrDiscarded is returned when a fetch completes after its source was
// unmounted or remounted. The result is dropped.
var ErrDiscarded = errors.New("source: response discarded")

// Fetcher loads a record collection.
type Fetcher interface {
	FetchRecords(ctx context.Context, ep remote.Endpoint) ([]models.Record, error)
}

// Event kinds.
const (
	EventRefreshed = "refreshed"
	EventFailed    = "failed"
)

// Event reports the outcome of a refresh.
type Event struct {
	View  string
	Kind  string // EventRefreshed or EventFailed
	Count int
	Err   error
}

// Snapshot is an immutable published state of a source.
type Snapshot struct {
	Records  []models.Record
	LoadedAt time.Time
	Loaded   bool
	// Err is the last refresh failure. Records still hold the previous data.
	Err     error
	Version uint64
}

// Stale reports whether the last refresh failed.
func (s *Snapshot) Stale() bool { return s.Err != nil }

var emptySnapshot = &Snapshot{Records: []models.Record{}}

// Source is one view's record collection. Readers get whole snapshots and
// never observe a partial update.
type Source struct {
	name     string
	endpoint remote.Endpoint
	fetcher  Fetcher
	log      *slog.Logger
	onEvent  func(Event)

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group

	mu      sync.Mutex
	gen     uint64
	mounted bool
}

// New creates an unmounted source for ep.
func New(name string, ep remote.Endpoint, fetcher Fetcher, logger *slog.Logger, onEvent func(Event)) *Source {
	s := &Source{
		name:     name,
		endpoint: ep,
		fetcher:  fetcher,
		log:      logger.With("component", "source", slog.String("view", name)),
		onEvent:  onEvent,
	}
	s.snap.Store(emptySnapshot)
	return s
}

// Name returns the view name.
func (s *Source) Name() string { return s.name }

// Mount starts a new lifetime with an empty snapshot. Fetches started in
// an earlier lifetime are discarded when they complete.
func (s *Source) Mount() {
	s.mu.Lock()
	s.gen++
	s.mounted = true
	s.snap.Store(emptySnapshot)
	s.mu.Unlock()
}

// Unmount drops the records and discards in-flight fetches.
func (s *Source) Unmount() {
	s.mu.Lock()
	s.gen++
	s.mounted = false
	s.snap.Store(emptySnapshot)
	s.mu.Unlock()
	sourceRecords.DeleteLabelValues(s.name)
}

// Mounted reports whether the source is live.
func (s *Source) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Snapshot returns the current state. It is never nil.
func (s *Source) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Ensure returns the current snapshot, fetching first if nothing has been loaded.
func (s *Source) Ensure(ctx context.Context) (*Snapshot, error) {
	if snap := s.Snapshot(); snap.Loaded {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh refetches the collection. Concurrent calls share one fetch. On
// failure the previous records are kept and the snapshot is marked stale.
func (s *Source) Refresh(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return nil, fmt.Errorf("source %s: %w", s.name, apperr.ErrNotReady)
	}
	key := strconv.FormatUint(s.gen, 10)
	s.mu.Unlock()

	ch := s.group.DoChan(key, func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		snap, _ := res.Val.(*Snapshot)
		return snap, res.Err
	}
}

func (s *Source) load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	start := time.Now()
	records, err := s.fetcher.FetchRecords(ctx, s.endpoint)
	observeFetch(s.name, err, time.Since(start))

	s.mu.Lock()
	if gen != s.gen || !s.mounted {
		s.mu.Unlock()
		s.log.Debug("stale response discarded")
		return nil, ErrDiscarded
	}

	prev := s.snap.Load()
	var next *Snapshot
	if err != nil {
		next = &Snapshot{
			Records:  prev.Records,
			LoadedAt: prev.LoadedAt,
			Loaded:   prev.Loaded,
			Err:      err,
			Version:  prev.Version,
		}
	} else {
		if records == nil {
			records = []models.Record{}
		}
		next = &Snapshot{
			Records:  records,
			LoadedAt: time.Now(),
			Loaded:   true,
			Version:  prev.Version + 1,
		}
	}
	s.snap.Store(next)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("refresh failed", slog.String("error", err.Error()), slog.Int("kept", len(prev.Records)))
		s.emit(Event{View: s.name, Kind: EventFailed, Count: len(prev.Records), Err: err})
		return next, fmt.Errorf("source %s: refresh: %w", s.name, err)
	}

	sourceRecords.WithLabelValues(s.name).Set(float64(len(records)))
	s.log.Info("refreshed", slog.Int("records", len(records)), slog.Duration("elapsed", time.Since(start)))
	s.emit(Event{View: s.name, Kind: EventRefreshed, Count: len(records)})
	return next, nil
}

func (s *Source) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
