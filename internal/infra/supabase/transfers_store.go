package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Transfers
// ============================================================

type transferRow struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Channel        string          `json:"channel"`
	Category       string          `json:"category"`
	SenderBankID   string          `json:"sender_bank_id"`
	ReceiverBankID string          `json:"receiver_bank_id"`
	Email          string          `json:"email"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ListTransfersByBank returns transfers sent or received by the bank,
// newest first.
func (c *Client) ListTransfersByBank(ctx context.Context, bankID string) ([]domain.Transfer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransfersByBank")
	defer span.End()
	span.SetAttributes(attribute.String("bank.id", bankID))

	var rows []transferRow
	q := url.Values{
		"select": {"id,name,amount,channel,category,sender_bank_id,receiver_bank_id,email,created_at"},
		"or":     {fmt.Sprintf("(sender_bank_id.eq.%s,receiver_bank_id.eq.%s)", bankID, bankID)},
		"order":  {"created_at.desc"},
	}
	if err := c.selectRows(ctx, "store/transfers", "transactions", q, &rows); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	transfers := make([]domain.Transfer, 0, len(rows))
	for _, r := range rows {
		transfers = append(transfers, domain.Transfer{
			ID:             r.ID,
			Name:           r.Name,
			Amount:         r.Amount,
			Channel:        r.Channel,
			Category:       r.Category,
			SenderBankID:   r.SenderBankID,
			ReceiverBankID: r.ReceiverBankID,
			Email:          r.Email,
			CreatedAt:      r.CreatedAt,
		})
	}
	return transfers, nil
}
