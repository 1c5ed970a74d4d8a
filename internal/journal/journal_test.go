package journal

import (
	"context"
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dagaz-journal-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAppendAndRecent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	for i, status := range []string{StatusFailed, StatusSucceeded, StatusSucceeded} {
		_, err := db.Append(ctx, Entry{
			ProjectID:        "p1",
			DocumentTypeUUID: "d1",
			FeedbackAdded:    true,
			Status:           status,
			Message:          "attempt",
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := db.Append(ctx, Entry{ProjectID: "p2", DocumentTypeUUID: "d9", Status: StatusSucceeded, DocumentUploaded: true, DocumentSHA256: "abc"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recent, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(recent))
	}
	if recent[0].ProjectID != "p2" || !recent[0].DocumentUploaded || recent[0].DocumentSHA256 != "abc" {
		t.Errorf("Recent[0] = %+v", recent[0])
	}
	if recent[0].ID == "" {
		t.Error("Append did not assign an id")
	}

	history, err := db.ForDocument(ctx, "p1", "d1")
	if err != nil {
		t.Fatalf("ForDocument: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(ForDocument) = %d, want 3", len(history))
	}
	if history[0].Status != StatusSucceeded || history[2].Status != StatusFailed {
		t.Errorf("history order = %s..%s", history[0].Status, history[2].Status)
	}
	if !history[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", history[2].CreatedAt, base)
	}
}

func TestForDocumentEmpty(t *testing.T) {
	db := testDB(t)
	got, err := db.ForDocument(context.Background(), "nope", "nope")
	if err != nil {
		t.Fatalf("ForDocument: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ForDocument = %v, want empty slice", got)
	}
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Append(context.Background(), Entry{ProjectID: "p", DocumentTypeUUID: "d", Status: StatusFailed}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := db.Recent(context.Background(), 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent = %v, %v", got, err)
	}
}
