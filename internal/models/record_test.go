package models

import (
	"testing"
	"time"
)

func TestRecordString(t *testing.T) {
	r := Record{"name": "Acme", "count": float64(3), "ratio": 1.5, "ok": true, "none": nil}

	cases := map[string]string{
		"name":    "Acme",
		"count":   "3",
		"ratio":   "1.5",
		"ok":      "true",
		"none":    "",
		"missing": "",
	}
	for field, want := range cases {
		if got := r.String(field); got != want {
			t.Errorf("String(%q) = %q, want %q", field, got, want)
		}
	}
}

func TestRecordTime(t *testing.T) {
	r := Record{
		"iso":   "2024-01-15T10:30:00Z",
		"nano":  "2024-01-15T10:30:00.123Z",
		"naive": "2024-01-15T10:30:00",
		"date":  "2024-01-15",
		"bad":   "yesterday",
		"null":  nil,
		"epoch": float64(1705314600000),
	}

	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	for _, field := range []string{"iso", "naive", "epoch"} {
		got, ok := r.Time(field)
		if !ok || !got.Equal(want) {
			t.Errorf("Time(%q) = %v, %v, want %v", field, got, ok, want)
		}
	}
	if got, ok := r.Time("nano"); !ok || got.Nanosecond() != 123_000_000 {
		t.Errorf("Time(nano) = %v, %v", got, ok)
	}
	if got, ok := r.Time("date"); !ok || !got.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time(date) = %v, %v", got, ok)
	}
	for _, field := range []string{"bad", "null", "missing"} {
		if _, ok := r.Time(field); ok {
			t.Errorf("Time(%q) ok = true, want false", field)
		}
	}
}

func TestRecordNumber(t *testing.T) {
	r := Record{"amount": "1999", "credits": float64(20), "label": "n/a"}
	if n, ok := r.Number("amount"); !ok || n != 1999 {
		t.Errorf("Number(amount) = %v, %v", n, ok)
	}
	if n, ok := r.Number("credits"); !ok || n != 20 {
		t.Errorf("Number(credits) = %v, %v", n, ok)
	}
	if _, ok := r.Number("label"); ok {
		t.Error("Number(label) ok = true, want false")
	}
}

func TestRecordWithCopies(t *testing.T) {
	r := Record{"a": "1"}
	out := r.With("b", "2")
	if _, ok := r["b"]; ok {
		t.Fatal("With mutated the receiver")
	}
	if out.String("a") != "1" || out.String("b") != "2" {
		t.Errorf("With = %v", out)
	}
}
