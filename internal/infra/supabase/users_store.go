package supabase

import (
	"context"
	"fmt"
	"net/url"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
)

type userRow struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// GetUser returns the user, or (nil, nil) when absent.
func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()

	var rows []userRow
	q := url.Values{
		"select": {"id,email,first_name,last_name"},
		"id":     {eq(userID)},
		"limit":  {"1"},
	}
	if err := c.selectRows(ctx, "store/users", "users", q, &rows); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &domain.User{ID: r.ID, Email: r.Email, FirstName: r.FirstName, LastName: r.LastName}, nil
}
