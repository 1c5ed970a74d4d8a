package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/models"
)

// Shape describes how a collection is laid out in its response body.
type Shape string

const (
	// ShapeList is an array under the envelope key.
	ShapeList Shape = "list"
	// ShapeByUser is a map of user key to {records, total_spent}.
	ShapeByUser Shape = "by_user"
)

// Endpoint locates one record collection.
type Endpoint struct {
	View     string
	Path     string
	Envelope string
	Shape    Shape
}

// FetchRecords loads the full collection at ep. Every failure is a *apperr.FetchError.
func (c *Client) FetchRecords(ctx context.Context, ep Endpoint) ([]models.Record, error) {
	resp, err := c.get(ctx, ep.Path)
	if err != nil {
		return nil, &apperr.FetchError{View: ep.View, Err: err}
	}
	if !resp.ok() {
		cause := errors.New("unexpected status")
		if msg := serverMessage(resp.body); msg != "" {
			cause = errors.New(msg)
		}
		return nil, &apperr.FetchError{View: ep.View, Status: resp.status, Err: cause}
	}

	var records []models.Record
	switch ep.Shape {
	case ShapeByUser:
		records, err = decodeByUser(resp.body, ep.Envelope)
	default:
		records, err = decodeList(resp.body, ep.Envelope)
	}
	if err != nil {
		return nil, &apperr.FetchError{View: ep.View, Status: resp.status, Err: err}
	}
	return records, nil
}

// decodeList accepts {<envelope>: [...]}, the generic {items: [...]} or a bare array.
func decodeList(body []byte, envelope string) ([]models.Record, error) {
	var bare []models.Record
	if err := json.Unmarshal(body, &bare); err == nil {
		return nonNil(bare), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	for _, key := range []string{envelope, "items"} {
		raw, ok := obj[key]
		if key == "" || !ok {
			continue
		}
		if string(raw) == "null" {
			return []models.Record{}, nil
		}
		var records []models.Record
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		return nonNil(records), nil
	}
	return nil, fmt.Errorf("missing %q envelope", envelope)
}

type userPayments struct {
	Records    []models.Record `json:"records"`
	TotalSpent any             `json:"total_spent"`
}

// decodeByUser flattens the per-user map in ascending key order. Each record
// carries its user's total_spent.
func decodeByUser(body []byte, envelope string) ([]models.Record, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	raw, ok := obj[envelope]
	if !ok {
		return nil, fmt.Errorf("missing %q envelope", envelope)
	}

	var byUser map[string]userPayments
	if err := json.Unmarshal(raw, &byUser); err != nil {
		return nil, fmt.Errorf("decode %q: %w", envelope, err)
	}
	return flattenByUser(byUser), nil
}

// flattenByUser merges per-user payment groups into one list.
func flattenByUser(byUser map[string]userPayments) []models.Record {
	keys := make([]string, 0, len(byUser))
	for k := range byUser {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []models.Record{}
	for _, k := range keys {
		group := byUser[k]
		for _, r := range group.Records {
			out = append(out, r.With("total_spent", group.TotalSpent))
		}
	}
	return out
}

func nonNil(records []models.Record) []models.Record {
	if records == nil {
		return []models.Record{}
	}
	return records
}
