// Package service provides the business logic layer (use cases): account
// aggregation, the merged transaction feed, identity and the dashboard.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/accounts")

// AccountSource is the part of the gateway the services need.
// Implemented by *gateway.Gateway.
type AccountSource interface {
	GetAccount(ctx context.Context, bank domain.Bank) (*domain.Account, error)
	SyncTransactions(ctx context.Context, accessToken string) []domain.ExternalTransaction
}

// AggregationConfig bounds the per-connection fan-out.
type AggregationConfig struct {
	MaxConcurrency int
	FetchTimeout   time.Duration
}

// AccountsService builds the per-user account aggregate.
type AccountsService struct {
	banks        port.ConnectionStore
	accounts     AccountSource
	institutions *InstitutionResolver
	cfg          AggregationConfig
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewAccountsService creates the account aggregator.
func NewAccountsService(
	banks port.ConnectionStore,
	accounts AccountSource,
	institutions *InstitutionResolver,
	cfg AggregationConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AccountsService {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &AccountsService{
		banks:        banks,
		accounts:     accounts,
		institutions: institutions,
		cfg:          cfg,
		metrics:      metrics,
		logger:       logger,
	}
}

// ListAccounts resolves the user's linked banks, fetches one live snapshot
// per bank concurrently and sums the current balances of the snapshots that
// succeeded. A bank whose fetch fails is left out; it never fails the call.
func (s *AccountsService) ListAccounts(ctx context.Context, userID string) (*domain.AccountsResult, error) {
	ctx, span := tracer.Start(ctx, "AccountsService.ListAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("list_accounts", time.Since(start))
	}()

	banks, err := s.banks.ListBanks(ctx, userID)
	if err != nil {
		s.metrics.IncrUpstreamError("store/banks")
		return nil, fmt.Errorf("list banks: %w", err)
	}
	if len(banks) == 0 {
		return nil, &domain.ErrNotFound{Resource: "accounts", ID: userID}
	}

	// Each goroutine owns one slot, so output order follows bank order.
	slots := make([]*domain.Account, len(banks))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, bank := range banks {
		g.Go(func() error {
			slots[i] = s.snapshot(ctx, bank)
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.AccountsResult{
		Data:                make([]domain.Account, 0, len(banks)),
		TotalCurrentBalance: decimal.Zero,
	}
	for _, acc := range slots {
		if acc == nil {
			continue
		}
		result.Data = append(result.Data, *acc)
		if acc.CurrentBalance.Valid {
			result.TotalCurrentBalance = result.TotalCurrentBalance.Add(acc.CurrentBalance.Decimal)
		}
	}
	result.TotalBanks = len(result.Data)

	span.SetAttributes(
		attribute.Int("banks.linked", len(banks)),
		attribute.Int("banks.fetched", result.TotalBanks),
	)
	return result, nil
}

// snapshot fetches one bank's account and institution. It returns nil when
// either lookup fails.
func (s *AccountsService) snapshot(ctx context.Context, bank domain.Bank) *domain.Account {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	acc, err := s.accounts.GetAccount(ctx, bank)
	if err != nil {
		s.logger.Warn("skipping bank: account fetch failed",
			zap.String("bank_id", bank.ID),
			zap.Error(err),
		)
		s.metrics.IncrSkippedConnection()
		return nil
	}

	inst, err := s.institutions.Resolve(ctx, acc.InstitutionID)
	if err != nil {
		s.logger.Warn("skipping bank: institution unavailable",
			zap.String("bank_id", bank.ID),
			zap.String("institution_id", acc.InstitutionID),
			zap.Error(err),
		)
		s.metrics.IncrSkippedConnection()
		return nil
	}
	acc.Institution = inst
	return acc
}
