package viewservice

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/review"
	"github.com/starford/dagaz/internal/source"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/testutil"
	"github.com/starford/dagaz/internal/views"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Publish(ev sse.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type env struct {
	svc      *Service
	platform *testutil.Platform
	journal  *journal.DB
	events   *recordingPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	p := testutil.NewPlatform(t)
	client := remote.NewClient(p.URL, testutil.Logger(), remote.WithRetryDelay(time.Millisecond))
	catalog := views.NewCatalog(time.UTC)
	reg := source.NewRegistry(catalog, client, testutil.Logger(), nil)
	t.Cleanup(reg.Close)
	j := testutil.TestJournal(t)
	events := &recordingPublisher{}

	svc := New(catalog, reg, client, j, testutil.Logger(),
		WithAutoCloseDelay(50*time.Millisecond),
		WithPublisher(events),
		WithClock(func() time.Time { return testNow }),
	)
	return &env{svc: svc, platform: p, journal: j, events: events}
}

func rowIDs(p *Page) []string {
	out := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.ID
	}
	return out
}

func TestViewsListing(t *testing.T) {
	e := newEnv(t)
	list := e.svc.Views()
	require.Len(t, list, 5)
	assert.Equal(t, views.Users, list[0].Name)
	assert.Equal(t, views.Payments, list[4].Name)
	assert.NotNil(t, list[1].Categories, "categories must serialize as []")

	_, err := e.svc.View("nope")
	assert.ErrorIs(t, err, apperr.ErrUnknownView)
}

func TestRowsFiltersByStatus(t *testing.T) {
	e := newEnv(t)
	q := Query{Filter: filter.State{}.WithCategory("status", "active")}

	page, err := e.svc.Rows(context.Background(), views.Users, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rowIDs(page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Filtered)
	assert.Equal(t, views.ToneSuccess, page.Rows[0].Tone)
	assert.Equal(t, "Active", page.Rows[0].Values["status"])
	assert.Equal(t, []string{"active", "inactive", "pending"}, page.Options["status"])
	assert.NotNil(t, page.LoadedAt)
	assert.False(t, page.Stale)
	assert.Equal(t, 1, e.platform.Calls("getAll-users"))
}

func TestRowsReviewDocumentsNewestFirst(t *testing.T) {
	e := newEnv(t)
	page, err := e.svc.Rows(context.Background(), views.ReviewDocuments, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d3", "d2", "d1"}, rowIDs(page))
	assert.Equal(t, views.ToneWarning, page.Rows[2].Tone)
}

func TestRowsSortAndPaging(t *testing.T) {
	e := newEnv(t)
	q := Query{SortField: "fullName", SortDir: grid.SortDesc, PageSize: 2, Page: 1}

	page, err := e.svc.Rows(context.Background(), views.Users, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, rowIDs(page))
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, Sort{Field: "fullName", Direction: grid.SortDesc}, page.Sort)

	_, err = e.svc.Rows(context.Background(), views.Users, Query{SortField: "nope", SortDir: grid.SortAsc})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRowsQuickFilter(t *testing.T) {
	e := newEnv(t)
	page, err := e.svc.Rows(context.Background(), views.Organizations, Query{Quick: "glob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"o2"}, rowIDs(page))
}

func TestRowsFirstLoadFailureIsStale(t *testing.T) {
	e := newEnv(t)
	e.platform.Set("getAll-users", http.StatusInternalServerError, map[string]string{"message": "down"})

	page, err := e.svc.Rows(context.Background(), views.Users, Query{})
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.True(t, page.Stale)
	assert.NotEmpty(t, page.Error)
	assert.Nil(t, page.LoadedAt)
	assert.Equal(t, 2, e.platform.Calls("getAll-users"), "one retry on 5xx")
}

func TestRefreshFailureKeepsPreviousData(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.Rows(ctx, views.Projects, Query{})
	require.NoError(t, err)

	e.platform.Set("getAll-projects", http.StatusBadGateway, nil)
	res, err := e.svc.Refresh(ctx, views.Projects)
	require.ErrorIs(t, err, apperr.ErrFetch)
	assert.Equal(t, 2, res.Records)
	assert.True(t, res.Stale)

	page, err := e.svc.Rows(ctx, views.Projects, Query{})
	require.NoError(t, err)
	assert.Len(t, page.Rows, 2)
	assert.True(t, page.Stale)
}

func TestRefreshUnknownView(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrUnknownView)
}

func TestExportCSVFollowsFilters(t *testing.T) {
	e := newEnv(t)
	q := Query{Filter: filter.State{}.WithCategory("payment_status", "paid"), PageSize: 1}

	exp, err := e.svc.Export(context.Background(), views.Payments, q, grid.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "payments-export-20240310T120000Z.csv", exp.Filename)
	assert.Equal(t, grid.ContentTypeCSV, exp.ContentType)
	assert.Equal(t, 2, exp.Rows)

	var buf bytes.Buffer
	require.NoError(t, exp.Write(&buf))
	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3, "header plus every filtered row regardless of page size")
	assert.Equal(t, []string{"Name", "Email", "Plan", "Amount", "Credits", "Status", "Date", "Country"}, lines[0])
	assert.Equal(t, "10.00", lines[1][3])
	assert.Equal(t, "49.00", lines[2][3])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Export(context.Background(), views.Users, Query{}, "pdf")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, e.platform.Calls("getAll-users"))
}

func TestExportFailsWhenNeverLoaded(t *testing.T) {
	e := newEnv(t)
	e.platform.Set("getAll-users", http.StatusInternalServerError, map[string]string{"message": "down"})

	exp, err := e.svc.Export(context.Background(), views.Users, Query{}, grid.FormatCSV)
	require.ErrorIs(t, err, apperr.ErrFetch)
	assert.Nil(t, exp)
}

func TestExportFromKeptDataIsStale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.Rows(ctx, views.Users, Query{})
	require.NoError(t, err)

	e.platform.Set("getAll-users", http.StatusInternalServerError, nil)
	_, err = e.svc.Refresh(ctx, views.Users)
	require.ErrorIs(t, err, apperr.ErrFetch)

	exp, err := e.svc.Export(ctx, views.Users, Query{}, grid.FormatCSV)
	require.NoError(t, err)
	assert.True(t, exp.Stale)
	assert.Equal(t, 3, exp.Rows)
}

func TestRecordDetail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d, err := e.svc.Record(ctx, views.Users, "u3")
	require.NoError(t, err)
	assert.True(t, d.Found)
	assert.Equal(t, views.ToneWarning, d.Tone)
	byField := map[string]string{}
	for _, f := range d.Fields {
		byField[f.Field] = f.Value
	}
	assert.Equal(t, "Grace Hopper", byField["fullName"])
	assert.Equal(t, grid.Placeholder, byField["createdAt"])

	missing, err := e.svc.Record(ctx, views.Users, "gone")
	require.NoError(t, err)
	assert.False(t, missing.Found)
	for _, f := range missing.Fields {
		if f.Field != "id" {
			assert.Equal(t, grid.Placeholder, f.Value, f.Field)
		}
	}
}

func TestDownload(t *testing.T) {
	e := newEnv(t)
	ref := remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"}

	dl, err := e.svc.Download(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "brand-brief.docx", dl.Filename)
	assert.Equal(t, testutil.DocxBytes, dl.Data)
	assert.Equal(t, review.DocxContentType, dl.ContentType)

	var sent remote.DocumentRef
	require.NoError(t, json.Unmarshal(e.platform.LastBody("get-review-document"), &sent))
	assert.Equal(t, ref, sent)
}

func TestDownloadFallbackNameFromLoadedList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.svc.Rows(ctx, views.ReviewDocuments, Query{})
	require.NoError(t, err)
	e.platform.Set("get-review-document", http.StatusOK, map[string]any{"docxBase64": review.Encode(testutil.DocxBytes)})

	dl, err := e.svc.Download(ctx, remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "Brand Brief.docx", dl.Filename)
}

func TestDownloadBadPayload(t *testing.T) {
	e := newEnv(t)
	e.platform.Set("get-review-document", http.StatusOK, map[string]any{"filename": "x.docx", "docxBase64": "%%%"})
	_, err := e.svc.Download(context.Background(), remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"})
	assert.ErrorIs(t, err, apperr.ErrSubmission)
}

func TestReturnValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Return(ctx, ReturnInput{Ref: remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"}, Feedback: "   "})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, review.MsgMissingInput, ve.Message)

	_, err = e.svc.Return(ctx, ReturnInput{Ref: remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"}, FileName: "notes.pdf", File: []byte("x")})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, review.MsgWrongFile, ve.Message)

	_, err = e.svc.Return(ctx, ReturnInput{Ref: remote.DocumentRef{ProjectID: "p1"}, Feedback: "ok"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Zero(t, e.platform.Calls("return-review-document"))
}

func TestReturnWithFileIsJournaled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"}

	res, err := e.svc.Return(ctx, ReturnInput{Ref: ref, Feedback: " tighten the intro ", FileName: "Brief.DOCX", File: testutil.DocxBytes})
	require.NoError(t, err)
	assert.Equal(t, review.StateSucceeded, res.Dialog.State)
	assert.Equal(t, "Document returned successfully", res.Response.Message)
	require.NotNil(t, res.Journal)
	assert.Equal(t, journal.StatusSucceeded, res.Journal.Status)
	assert.NotEmpty(t, res.Journal.DocumentSHA256)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(e.platform.LastBody("return-review-document"), &sent))
	assert.Equal(t, "tighten the intro", sent["feedback"])
	assert.Equal(t, review.Encode(testutil.DocxBytes), sent["document_text"])
	assert.Equal(t, "p1", sent["project_id"])

	assert.Equal(t, []string{sse.TypeDocumentReturned}, e.events.types())

	history, err := e.svc.ReturnHistory(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// The dialog auto-closes and is forgotten.
	assert.Eventually(t, func() bool {
		_, open := e.svc.DialogStatus(ref)
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestReturnFailureThenRetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"}
	e.platform.Set("return-review-document", http.StatusBadRequest, map[string]string{"message": "Project not found"})

	res, err := e.svc.Return(ctx, ReturnInput{Ref: ref, Feedback: "fix"})
	require.ErrorIs(t, err, apperr.ErrSubmission)
	require.NotNil(t, res)
	assert.Equal(t, review.StateFailed, res.Dialog.State)
	assert.Equal(t, "Project not found", res.Dialog.Error)
	require.NotNil(t, res.Journal)
	assert.Equal(t, journal.StatusFailed, res.Journal.Status)
	assert.Empty(t, e.events.types())

	e.platform.Set("return-review-document", http.StatusOK, testutil.Fixtures()["return-review-document"].Body)
	res, err = e.svc.Return(ctx, ReturnInput{Ref: ref, Feedback: "fix"})
	require.NoError(t, err)
	assert.Equal(t, review.StateSucceeded, res.Dialog.State)

	recent, err := e.svc.Returns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, journal.StatusSucceeded, recent[0].Status)
}

func TestReturnAfterSuccessOpensNewDialog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := remote.DocumentRef{ProjectID: "p2", DocumentTypeUUID: "d2"}

	_, err := e.svc.Return(ctx, ReturnInput{Ref: ref, Feedback: "first"})
	require.NoError(t, err)
	_, err = e.svc.Return(ctx, ReturnInput{Ref: ref, Feedback: "second"})
	require.NoError(t, err)
	assert.Equal(t, 2, e.platform.Calls("return-review-document"))
}

func TestDashboard(t *testing.T) {
	e := newEnv(t)
	d, err := e.svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.Errors)
	require.NotNil(t, d.Analytics)
	assert.Equal(t, 3, d.Analytics.ReviewDocumentsCount)
	require.NotNil(t, d.Activity.Users)
	assert.Equal(t, "$135.00", d.Balance.Total)

	require.NotNil(t, d.Payments)
	assert.Equal(t, 3, d.Payments.Payments)
	assert.Equal(t, 2, d.Payments.Customers)
	assert.Equal(t, 2, d.Payments.Countries)
	assert.Equal(t, 2, d.Payments.Plans)
	assert.Equal(t, "74.00", d.Payments.Revenue)
	require.Len(t, d.Payments.TopCustomers, 2)
	assert.Equal(t, CustomerSpend{Email: "alan@example.com", Name: "Alan Turing", TotalSpent: "49.00", Payments: 1}, d.Payments.TopCustomers[0])
	assert.Equal(t, 2, d.Payments.TopCustomers[1].Payments)
}

func TestDashboardSectionsFailIndependently(t *testing.T) {
	e := newEnv(t)
	e.platform.Set("show-balance", http.StatusInternalServerError, nil)
	e.platform.Set("payment-data-superadminportal", http.StatusInternalServerError, nil)

	d, err := e.svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d.Balance)
	assert.Contains(t, d.Errors, "balance")
	assert.Contains(t, d.Errors, "payments")
	assert.NotNil(t, d.Analytics)
	assert.Equal(t, 0, d.Payments.Payments)
}

func TestPaymentStatsOfEmpty(t *testing.T) {
	st := PaymentStatsOf(nil)
	assert.Equal(t, "0.00", st.Revenue)
	assert.NotNil(t, st.TopCustomers)
	assert.Zero(t, st.Customers)
}

func TestPaymentStatsIgnoresMalformedAmounts(t *testing.T) {
	st := PaymentStatsOf([]models.Record{
		{"email": "a@x", "amount_total": "oops", "total_spent": "n/a"},
		{"email": "b@x", "amount_total": "250"},
	})
	assert.Equal(t, "2.50", st.Revenue)
	assert.Equal(t, 2, st.Customers)
	assert.True(t, strings.HasSuffix(st.TopCustomers[0].TotalSpent, ".00"))
}

func TestContextCancelled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.svc.Rows(ctx, views.Users, Query{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
