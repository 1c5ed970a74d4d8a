package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/views"
)

type fakeFetcher struct {
	calls atomic.Int32
	gate  chan struct{}

	mu      sync.Mutex
	records map[string][]models.Record
	errs    map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{records: map[string][]models.Record{}, errs: map[string]error{}}
}

func (f *fakeFetcher) set(view string, records []models.Record, err error) {
	f.mu.Lock()
	f.records[view] = records
	f.errs[view] = err
	f.mu.Unlock()
}

func (f *fakeFetcher) FetchRecords(ctx context.Context, ep remote.Endpoint) ([]models.Record, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[ep.View], f.errs[ep.View]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usersEndpoint() remote.Endpoint {
	return remote.Endpoint{View: "users", Path: "getAll-users", Envelope: "users"}
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	f := newFakeFetcher()
	f.set("users", []models.Record{{"id": "u1"}, {"id": "u2"}}, nil)

	var events []Event
	s := New("users", usersEndpoint(), f, testLogger(), func(ev Event) { events = append(events, ev) })
	s.Mount()

	assert.False(t, s.Snapshot().Loaded)
	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Loaded)
	assert.Len(t, snap.Records, 2)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Same(t, snap, s.Snapshot())
	require.Len(t, events, 1)
	assert.Equal(t, "refreshed", events[0].Kind)
}

func TestFailedRefreshKeepsPreviousRecords(t *testing.T) {
	f := newFakeFetcher()
	f.set("users", []models.Record{{"id": "u1"}}, nil)
	s := New("users", usersEndpoint(), f, testLogger(), nil)
	s.Mount()
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	f.set("users", nil, &apperr.FetchError{View: "users", Status: 503, Err: errors.New("unavailable")})
	snap, err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFetch)
	require.NotNil(t, snap)
	assert.True(t, snap.Stale())
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, uint64(1), snap.Version)

	f.set("users", []models.Record{{"id": "u1"}, {"id": "u3"}}, nil)
	snap, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Stale())
	assert.Len(t, snap.Records, 2)
}

func TestFirstLoadFailureIsEmpty(t *testing.T) {
	f := newFakeFetcher()
	f.set("users", nil, &apperr.FetchError{View: "users", Err: errors.New("dial tcp: refused")})
	s := New("users", usersEndpoint(), f, testLogger(), nil)
	s.Mount()

	snap, err := s.Ensure(context.Background())
	require.Error(t, err)
	assert.False(t, snap.Loaded)
	assert.Empty(t, snap.Records)
	assert.NotNil(t, snap.Records)
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	f.set("users", []models.Record{{"id": "u1"}}, nil)
	s := New("users", usersEndpoint(), f, testLogger(), nil)
	s.Mount()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResponseAfterUnmountIsDiscarded(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	f.set("users", []models.Record{{"id": "late"}}, nil)
	s := New("users", usersEndpoint(), f, testLogger(), nil)
	s.Mount()

	done := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Unmount()
	s.Mount()
	close(f.gate)

	assert.ErrorIs(t, <-done, ErrDiscarded)
	assert.False(t, s.Snapshot().Loaded, "a remounted source must not receive the old response")
}

func TestRefreshUnmounted(t *testing.T) {
	s := New("users", usersEndpoint(), newFakeFetcher(), testLogger(), nil)
	_, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, apperr.ErrNotReady)
}

func TestRefreshCallerCancelled(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	defer close(f.gate)
	s := New("users", usersEndpoint(), f, testLogger(), nil)
	s.Mount()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistryViewsFailIndependently(t *testing.T) {
	f := newFakeFetcher()
	f.set("users", []models.Record{{"id": "u1"}}, nil)
	f.set("payments", nil, &apperr.FetchError{View: "payments", Status: 500, Err: errors.New("boom")})

	reg := NewRegistry(views.NewCatalog(nil), f, testLogger(), nil)
	defer reg.Close()

	err := reg.RefreshAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFetch)

	users, err := reg.Source(views.Users)
	require.NoError(t, err)
	assert.True(t, users.Snapshot().Loaded)

	payments, err := reg.Source(views.Payments)
	require.NoError(t, err)
	assert.True(t, payments.Snapshot().Stale())
}

func TestRegistryUnmountRecreates(t *testing.T) {
	f := newFakeFetcher()
	f.set("users", []models.Record{{"id": "u1"}}, nil)
	reg := NewRegistry(views.NewCatalog(nil), f, testLogger(), nil)

	first, err := reg.Source(views.Users)
	require.NoError(t, err)
	_, err = first.Refresh(context.Background())
	require.NoError(t, err)

	reg.Unmount(views.Users)
	assert.False(t, first.Mounted())

	second, err := reg.Source(views.Users)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.False(t, second.Snapshot().Loaded)

	_, err = reg.Source("invoices")
	assert.ErrorIs(t, err, apperr.ErrUnknownView)
}
