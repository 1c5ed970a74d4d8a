package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/dagaz/internal/apperr"
)

// Analytics holds the platform-wide entity counts.
type Analytics struct {
	UsersCount           int `json:"users_count"`
	OrganizationsCount   int `json:"organizations_count"`
	ProjectsCount        int `json:"projects_count"`
	ReviewDocumentsCount int `json:"reviewDocuments_count"`
}

// ActivityItem is the latest write to one table.
type ActivityItem struct {
	Table        string `json:"table"`
	CreatedAt    string `json:"createdAt"`
	RelativeTime string `json:"relative_time"`
}

// Activity is the latest write per table.
type Activity struct {
	Users          *ActivityItem `json:"Users,omitempty"`
	Organizations  *ActivityItem `json:"Organizations,omitempty"`
	Projects       *ActivityItem `json:"Projects,omitempty"`
	ReviewDocument *ActivityItem `json:"ReviewDocument,omitempty"`
}

// Balance is the payment processor balance, as display strings.
type Balance struct {
	Available string `json:"available"`
	Pending   string `json:"pending"`
	Total     string `json:"total"`
}

// Analytics fetches entity counts.
func (c *Client) Analytics(ctx context.Context) (*Analytics, error) {
	var out Analytics
	if err := c.getJSON(ctx, "analytics", "admin-analytics", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentActivity fetches the latest activity per table.
func (c *Client) RecentActivity(ctx context.Context) (*Activity, error) {
	var env struct {
		Success bool     `json:"success"`
		Data    Activity `json:"data"`
	}
	if err := c.getJSON(ctx, "activity", "recent-activity", &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Balance fetches the account balance.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var out Balance
	if err := c.getJSON(ctx, "balance", "show-balance", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, name, path string, out any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return &apperr.FetchError{View: name, Err: err}
	}
	if !resp.ok() {
		return &apperr.FetchError{View: name, Status: resp.status, Err: errors.New("unexpected status")}
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &apperr.FetchError{View: name, Status: resp.status, Err: fmt.Errorf("decode json: %w", err)}
	}
	return nil
}
