// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
)

// ConnectionStore reads the linked banks of a user.
// Implemented by the Supabase and Postgres adapters.
type ConnectionStore interface {
	ListBanks(ctx context.Context, userID string) ([]domain.Bank, error)
	// GetBank returns (nil, nil) when no bank has the given id.
	GetBank(ctx context.Context, bankID string) (*domain.Bank, error)
}

// TransferStore reads locally recorded transfers.
type TransferStore interface {
	// ListTransfersByBank returns transfers where the bank is sender or
	// receiver, newest first.
	ListTransfersByBank(ctx context.Context, bankID string) ([]domain.Transfer, error)
}

// UserStore reads user records.
type UserStore interface {
	// GetUser returns (nil, nil) when the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AccountDataProvider is the external account-data provider (Plaid).
type AccountDataProvider interface {
	GetAccounts(ctx context.Context, accessToken string) (*domain.ProviderAccounts, error)
	GetInstitution(ctx context.Context, institutionID string) (*domain.Institution, error)
	// SyncTransactionsPage may return a nil page, which ends the sync.
	SyncTransactionsPage(ctx context.Context, accessToken, cursor string) (*domain.SyncPage, error)
}

// Cache provides generic caching with expiration.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
