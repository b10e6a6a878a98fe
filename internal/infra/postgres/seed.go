package postgres

import (
	"context"
	"fmt"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
)

// Insert helpers for cmd/seed and tests. The aggregation pipeline itself
// never writes.

// CreateUser inserts or updates a user.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name`,
		u.ID, u.Email, u.FirstName, u.LastName)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// CreateBank inserts a linked bank. A zero CreatedAt uses the database clock.
func (s *Store) CreateBank(ctx context.Context, b domain.Bank) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO banks (id, user_id, access_token, item_id, account_id, funding_source_url, shareable_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))`,
		b.ID, b.UserID, b.AccessToken, b.ItemID, b.AccountID, b.FundingSourceURL, b.ShareableID, nullTime(b))
	if err != nil {
		return fmt.Errorf("insert bank: %w", err)
	}
	return nil
}

// CreateTransfer inserts a transfer between two linked banks.
func (s *Store) CreateTransfer(ctx context.Context, t domain.Transfer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, name, amount, channel, category, sender_bank_id, receiver_bank_id, email, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, t.Amount.String(), t.Channel, t.Category, t.SenderBankID, t.ReceiverBankID, t.Email, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func nullTime(b domain.Bank) any {
	if b.CreatedAt.IsZero() {
		return nil
	}
	return b.CreatedAt
}
