package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Banks (linked connections)
// ============================================================

const bankColumns = "id,user_id,access_token,item_id,account_id,funding_source_url,shareable_id,created_at"

type bankRow struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"access_token"`
	ItemID           string    `json:"item_id"`
	AccountID        string    `json:"account_id"`
	FundingSourceURL string    `json:"funding_source_url"`
	ShareableID      string    `json:"shareable_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func (r bankRow) toDomain() domain.Bank {
	return domain.Bank{
		ID:               r.ID,
		UserID:           r.UserID,
		AccessToken:      r.AccessToken,
		ItemID:           r.ItemID,
		AccountID:        r.AccountID,
		FundingSourceURL: r.FundingSourceURL,
		ShareableID:      r.ShareableID,
		CreatedAt:        r.CreatedAt,
	}
}

// ListBanks returns the user's linked banks in link order.
func (c *Client) ListBanks(ctx context.Context, userID string) ([]domain.Bank, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBanks")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var rows []bankRow
	q := url.Values{
		"select":  {bankColumns},
		"user_id": {eq(userID)},
		"order":   {"created_at.asc"},
	}
	if err := c.selectRows(ctx, "store/banks", "banks", q, &rows); err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}

	banks := make([]domain.Bank, 0, len(rows))
	for _, r := range rows {
		banks = append(banks, r.toDomain())
	}
	return banks, nil
}

// GetBank returns one bank by id, or (nil, nil) when absent.
func (c *Client) GetBank(ctx context.Context, bankID string) (*domain.Bank, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBank")
	defer span.End()
	span.SetAttributes(attribute.String("bank.id", bankID))

	var rows []bankRow
	q := url.Values{
		"select": {bankColumns},
		"id":     {eq(bankID)},
		"limit":  {"1"},
	}
	if err := c.selectRows(ctx, "store/banks", "banks", q, &rows); err != nil {
		return nil, fmt.Errorf("get bank: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	bank := rows[0].toDomain()
	return &bank, nil
}
