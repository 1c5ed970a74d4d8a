// Package testutil provides shared test helpers: a fake platform API, a
// temporary journal and a quiet logger.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/starford/dagaz/internal/journal"
)

// DocxBytes starts with the zip signature, like every .docx.
var DocxBytes = []byte("PK\x03\x04\x14\x00\x06\x00fake-docx-body")

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestJournal creates a temporary SQLite journal that is automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Response is a canned reply of the fake platform.
type Response struct {
	Status int
	Body   any
}

// Platform is an httptest fake of the platform API. Every path answers
// with fixture data until overridden with Set.
type Platform struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]Response
	calls     map[string]int
	bodies    map[string][]byte
}

// NewPlatform starts a fake platform closed at test cleanup.
func NewPlatform(t *testing.T) *Platform {
	t.Helper()
	p := &Platform{
		responses: Fixtures(),
		calls:     make(map[string]int),
		bodies:    make(map[string][]byte),
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

func (p *Platform) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	body, _ := io.ReadAll(r.Body)

	p.mu.Lock()
	p.calls[path]++
	p.bodies[path] = body
	resp, ok := p.responses[path]
	p.mu.Unlock()

	if !ok {
		resp = Response{Status: http.StatusNotFound, Body: map[string]string{"message": "not found"}}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// Set replaces the reply of path.
func (p *Platform) Set(path string, status int, body any) {
	p.mu.Lock()
	p.responses[path] = Response{Status: status, Body: body}
	p.mu.Unlock()
}

// Calls returns how many requests path received.
func (p *Platform) Calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

// LastBody returns the body of the latest request to path.
func (p *Platform) LastBody(path string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodies[path]
}

// Fixtures returns the default replies of every platform path.
func Fixtures() map[string]Response {
	return map[string]Response{
		"getAll-users": {Body: map[string]any{
			"count": 3,
			"users": []map[string]any{
				{"id": "u1", "fullName": "Ada Lovelace", "email": "ada@example.com", "status": "Active", "createdAt": "2024-01-05T10:00:00Z"},
				{"id": "u2", "fullName": "Alan Turing", "email": "alan@example.com", "status": "inactive", "createdAt": "2024-02-10T09:30:00Z"},
				{"id": "u3", "fullName": "Grace Hopper", "email": "grace@example.com", "status": "pending", "createdAt": nil},
			},
		}},
		"getAll-organizations": {Body: map[string]any{
			"total_organizations": 2,
			"organizations": []map[string]any{
				{"id": "o1", "organization_name": "Acme Corp", "createdAt": "2024-01-01T00:00:00Z"},
				{"id": "o2", "organization_name": "Globex", "createdAt": "2024-03-01T00:00:00Z"},
			},
		}},
		"getAll-projects": {Body: map[string]any{
			"total_projects": 2,
			"projects": []map[string]any{
				{"id": "p1", "project_name": "Launch", "organization_id": "o1", "createdAt": "2024-01-15T00:00:00Z"},
				{"id": "p2", "project_name": "Rebrand", "organization_id": "o2", "createdAt": "2024-02-15T00:00:00Z"},
			},
		}},
		"getAll-review-document": {Body: map[string]any{
			"documents": []map[string]any{
				{"project_id": "p1", "document_type_uuid": "d1", "document_type": "Brand Brief", "organization_name": "Acme Corp", "project_name": "Launch", "email": "ada@example.com", "status": "Pending", "createdAt": "2024-01-20T08:00:00Z"},
				{"project_id": "p2", "document_type_uuid": "d2", "document_type": "Market Study", "organization_name": "Globex", "project_name": "Rebrand", "email": "alan@example.com", "status": "approved", "createdAt": "2024-02-20T08:00:00Z"},
				{"project_id": "p1", "document_type_uuid": "d3", "document_type": "Persona", "organization_name": "Acme Corp", "project_name": "Launch", "email": "ada@example.com", "status": "rejected", "createdAt": "2024-03-01T08:00:00Z"},
			},
		}},
		"payment-data-superadminportal": {Body: map[string]any{
			"data": map[string]any{
				"user-b": map[string]any{
					"total_spent": 4900,
					"records": []map[string]any{
						{"index_id": "pay-3", "name": "Alan Turing", "email": "alan@example.com", "plan_name": "Pro", "amount_total": 4900, "credits": 100, "payment_status": "paid", "payment_at": "2024-02-11T12:00:00Z", "country": "UK"},
					},
				},
				"user-a": map[string]any{
					"total_spent": 2500,
					"records": []map[string]any{
						{"index_id": "pay-1", "name": "Ada Lovelace", "email": "ada@example.com", "plan_name": "Starter", "amount_total": 1000, "credits": 20, "payment_status": "paid", "payment_at": "2024-01-06T12:00:00Z", "country": "US"},
						{"index_id": "pay-2", "name": "Ada Lovelace", "email": "ada@example.com", "plan_name": "Starter", "amount_total": 1500, "credits": 30, "payment_status": "pending", "payment_at": "2024-01-20T12:00:00Z", "country": "US"},
					},
				},
			},
		}},
		"get-review-document": {Body: map[string]any{
			"filename":   "brand-brief.docx",
			"docxBase64": base64.StdEncoding.EncodeToString(DocxBytes),
		}},
		"return-review-document": {Body: map[string]any{
			"message":                    "Document returned successfully",
			"status":                     "returned",
			"feedback_added":             true,
			"returned_document_uploaded": false,
			"returned_s3_url":            "",
			"email_sent":                 true,
		}},
		"admin-analytics": {Body: map[string]any{
			"users_count": 3, "organizations_count": 2, "projects_count": 2, "reviewDocuments_count": 3,
		}},
		"recent-activity": {Body: map[string]any{
			"success": true,
			"data": map[string]any{
				"Users": map[string]any{"table": "Users", "createdAt": "2024-02-10T09:30:00Z", "relative_time": "2 days ago"},
			},
		}},
		"show-balance": {Body: map[string]any{"available": "$120.00", "pending": "$15.00", "total": "$135.00"}},
	}
}
