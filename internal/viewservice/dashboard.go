package viewservice

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/grid"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/remote"
	"github.com/starford/dagaz/internal/views"
)

// topCustomers is how many customers PaymentStats ranks.
const topCustomers = 5

// Dashboard is the overview page. Each section loads independently; a
// failed section is reported in Errors and left empty.
type Dashboard struct {
	Analytics *remote.Analytics `json:"analytics,omitempty"`
	Activity  *remote.Activity  `json:"activity,omitempty"`
	Balance   *remote.Balance   `json:"balance,omitempty"`
	Payments  *PaymentStats     `json:"payments,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// CustomerSpend is one customer's lifetime spend.
type CustomerSpend struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	TotalSpent string `json:"total_spent"`
	Payments   int    `json:"payments"`
}

// PaymentStats summarizes the payment history.
type PaymentStats struct {
	Payments     int             `json:"payments"`
	Customers    int             `json:"customers"`
	Countries    int             `json:"countries"`
	Plans        int             `json:"plans"`
	Revenue      string          `json:"revenue"`
	TopCustomers []CustomerSpend `json:"top_customers"`
}

// Dashboard loads the overview sections concurrently.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	out := &Dashboard{}
	var mu sync.Mutex
	fail := func(section string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if out.Errors == nil {
			out.Errors = make(map[string]string)
		}
		out.Errors[section] = err.Error()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.platform.Analytics(gCtx)
		if err != nil {
			fail("analytics", err)
			return nil
		}
		out.Analytics = a
		return nil
	})
	g.Go(func() error {
		a, err := s.platform.RecentActivity(gCtx)
		if err != nil {
			fail("activity", err)
			return nil
		}
		out.Activity = a
		return nil
	})
	g.Go(func() error {
		b, err := s.platform.Balance(gCtx)
		if err != nil {
			fail("balance", err)
			return nil
		}
		out.Balance = b
		return nil
	})
	g.Go(func() error {
		_, snap, err := s.snapshot(gCtx, views.Payments)
		if err != nil {
			fail("payments", err)
			return nil
		}
		if snap.Err != nil {
			fail("payments", snap.Err)
		}
		out.Payments = PaymentStatsOf(snap.Records)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentStatsOf aggregates flattened payment records. Customers are keyed
// by email; total_spent is taken from the customer's first record.
func PaymentStatsOf(records []models.Record) *PaymentStats {
	customers := map[string]*CustomerSpend{}
	spent := map[string]decimal.Decimal{}
	countries := map[string]struct{}{}
	plans := map[string]struct{}{}
	revenue := decimal.Zero

	for _, r := range records {
		if d, ok := grid.MajorUnits(r, "amount_total"); ok {
			revenue = revenue.Add(d)
		}
		if c := r.String("country"); c != "" {
			countries[c] = struct{}{}
		}
		if p := r.String("plan_name"); p != "" {
			plans[p] = struct{}{}
		}
		email := r.String("email")
		if email == "" {
			continue
		}
		c, ok := customers[email]
		if !ok {
			c = &CustomerSpend{Email: email, Name: r.String("name")}
			customers[email] = c
			if d, ok := grid.MajorUnits(r, "total_spent"); ok {
				spent[email] = d
			}
		}
		c.Payments++
	}

	top := make([]CustomerSpend, 0, len(customers))
	for email, c := range customers {
		c.TotalSpent = spent[email].StringFixed(2)
		top = append(top, *c)
	}
	sort.Slice(top, func(i, j int) bool {
		a, b := spent[top[i].Email], spent[top[j].Email]
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return top[i].Email < top[j].Email
	})
	if len(top) > topCustomers {
		top = top[:topCustomers]
	}

	return &PaymentStats{
		Payments:     len(records),
		Customers:    len(customers),
		Countries:    len(countries),
		Plans:        len(plans),
		Revenue:      revenue.StringFixed(2),
		TopCustomers: top,
	}
}
