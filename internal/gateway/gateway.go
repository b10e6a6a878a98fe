// Package gateway is the typed façade over the external account-data
// provider. It converts provider payloads into domain records and owns the
// transaction sync pagination loop.
package gateway

import (
	"context"
	"fmt"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gateway")

// DefaultMaxSyncPages bounds the sync loop when no limit is configured.
const DefaultMaxSyncPages = 50

// Gateway wraps a port.AccountDataProvider.
type Gateway struct {
	provider port.AccountDataProvider
	maxPages int
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// New creates a Gateway. maxPages < 1 falls back to DefaultMaxSyncPages.
func New(provider port.AccountDataProvider, maxPages int, metrics *observability.Metrics, logger *zap.Logger) *Gateway {
	if maxPages < 1 {
		maxPages = DefaultMaxSyncPages
	}
	return &Gateway{
		provider: provider,
		maxPages: maxPages,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetAccount returns the first account of the connection's credential,
// stamped with the connection's identifiers.
func (g *Gateway) GetAccount(ctx context.Context, bank domain.Bank) (*domain.Account, error) {
	resp, err := g.provider.GetAccounts(ctx, bank.AccessToken)
	if err != nil {
		g.metrics.IncrUpstreamError("plaid/accounts")
		return nil, fmt.Errorf("get accounts for bank %s: %w", bank.ID, err)
	}
	if resp == nil || len(resp.Accounts) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: bank.ID}
	}

	// One connection maps to one account snapshot; extra accounts are ignored.
	pa := resp.Accounts[0]
	return &domain.Account{
		ID:               pa.AccountID,
		AvailableBalance: nullDecimal(pa.AvailableBalance),
		CurrentBalance:   nullDecimal(pa.CurrentBalance),
		InstitutionID:    resp.InstitutionID,
		Name:             pa.Name,
		OfficialName:     pa.OfficialName,
		Mask:             pa.Mask,
		Type:             pa.Type,
		Subtype:          pa.Subtype,
		BankID:           bank.ID,
		ShareableID:      bank.ShareableID,
	}, nil
}

// GetInstitution fetches institution metadata. An empty id is ErrNotFound.
func (g *Gateway) GetInstitution(ctx context.Context, institutionID string) (*domain.Institution, error) {
	if institutionID == "" {
		return nil, &domain.ErrNotFound{Resource: "institution", ID: institutionID}
	}
	inst, err := g.provider.GetInstitution(ctx, institutionID)
	if err != nil {
		g.metrics.IncrUpstreamError("plaid/institutions")
		return nil, fmt.Errorf("get institution %s: %w", institutionID, err)
	}
	if inst == nil {
		return nil, &domain.ErrNotFound{Resource: "institution", ID: institutionID}
	}
	return inst, nil
}

// SyncTransactions pages through the provider's transaction sync and returns
// every added record in provider order.
//
// The loop stops when a page is nil or adds nothing, when the provider reports no more
// pages, when the cursor stops advancing, or after maxPages requests. A
// provider error ends the loop and what was accumulated so far is returned.
func (g *Gateway) SyncTransactions(ctx context.Context, accessToken string) []domain.ExternalTransaction {
	ctx, span := tracer.Start(ctx, "Gateway.SyncTransactions")
	defer span.End()

	log := g.logger.With(zap.String("sync_id", uuid.NewString()))

	var (
		out    []domain.ExternalTransaction
		cursor string
		pages  int
	)
	for {
		if pages == g.maxPages {
			log.Warn("transaction sync stopped at page limit",
				zap.Int("pages", pages),
				zap.Int("transactions", len(out)),
			)
			g.metrics.IncrTruncatedSync()
			break
		}

		page, err := g.provider.SyncTransactionsPage(ctx, accessToken, cursor)
		pages++
		if err != nil {
			log.Warn("transaction sync failed, returning partial result",
				zap.Int("page", pages),
				zap.Int("transactions", len(out)),
				zap.Error(err),
			)
			g.metrics.IncrUpstreamError("plaid/transactions")
			g.metrics.IncrTruncatedSync()
			break
		}
		if page == nil {
			break
		}

		for _, pt := range page.Added {
			tx, err := toExternalTransaction(pt)
			if err != nil {
				log.Warn("skipping provider transaction", zap.String("transaction_id", pt.TransactionID), zap.Error(err))
				continue
			}
			out = append(out, tx)
		}

		if len(page.Added) == 0 || !page.HasMore {
			break
		}
		if page.NextCursor == "" || page.NextCursor == cursor {
			log.Warn("transaction sync cursor did not advance", zap.Int("page", pages))
			g.metrics.IncrTruncatedSync()
			break
		}
		cursor = page.NextCursor
	}

	span.SetAttributes(
		attribute.Int("sync.pages", pages),
		attribute.Int("sync.transactions", len(out)),
	)
	g.metrics.ObserveSyncedTransactions(len(out))
	return out
}

func toExternalTransaction(pt domain.ProviderTransaction) (domain.ExternalTransaction, error) {
	date, err := domain.ParseDate(pt.Date)
	if err != nil {
		return domain.ExternalTransaction{}, err
	}
	category := ""
	if len(pt.Categories) > 0 {
		category = pt.Categories[0]
	}
	return domain.ExternalTransaction{
		ID:             pt.TransactionID,
		Name:           pt.Name,
		PaymentChannel: pt.PaymentChannel,
		AccountID:      pt.AccountID,
		Amount:         decimal.NewFromFloat(pt.Amount),
		Pending:        pt.Pending,
		Category:       category,
		Date:           date,
		Image:          pt.LogoURL,
	}, nil
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}
