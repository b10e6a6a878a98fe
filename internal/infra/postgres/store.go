package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("postgres")

// Store implements port.ConnectionStore, port.TransferStore and
// port.UserStore on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store on an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const bankColumns = `id, user_id, access_token, item_id, account_id, funding_source_url, shareable_id, created_at`

func scanBank(row pgx.Row) (domain.Bank, error) {
	var b domain.Bank
	err := row.Scan(&b.ID, &b.UserID, &b.AccessToken, &b.ItemID, &b.AccountID, &b.FundingSourceURL, &b.ShareableID, &b.CreatedAt)
	return b, err
}

// ListBanks returns the user's linked banks in link order.
func (s *Store) ListBanks(ctx context.Context, userID string) ([]domain.Bank, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListBanks")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := s.pool.Query(ctx,
		`SELECT `+bankColumns+` FROM banks WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query banks: %w", err)
	}
	defer rows.Close()

	banks := []domain.Bank{}
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		banks = append(banks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate banks: %w", err)
	}
	return banks, nil
}

// GetBank returns one bank by id, or (nil, nil) when absent.
func (s *Store) GetBank(ctx context.Context, bankID string) (*domain.Bank, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetBank")
	defer span.End()

	b, err := scanBank(s.pool.QueryRow(ctx, `SELECT `+bankColumns+` FROM banks WHERE id = $1`, bankID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bank: %w", err)
	}
	return &b, nil
}

// ListTransfersByBank returns transfers sent or received by the bank,
// newest first.
func (s *Store) ListTransfersByBank(ctx context.Context, bankID string) ([]domain.Transfer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListTransfersByBank")
	defer span.End()
	span.SetAttributes(attribute.String("bank.id", bankID))

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, amount::text, channel, category, sender_bank_id, receiver_bank_id, email, created_at
		FROM transactions
		WHERE sender_bank_id = $1 OR receiver_bank_id = $1
		ORDER BY created_at DESC, id`, bankID)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	transfers := []domain.Transfer{}
	for rows.Next() {
		var (
			t      domain.Transfer
			amount string
		)
		if err := rows.Scan(&t.ID, &t.Name, &amount, &t.Channel, &t.Category, &t.SenderBankID, &t.ReceiverBankID, &t.Email, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse transfer %s amount: %w", t.ID, err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}

// GetUser returns the user, or (nil, nil) when absent.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetUser")
	defer span.End()

	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, first_name, last_name FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
