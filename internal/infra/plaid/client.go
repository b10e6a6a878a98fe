// Package plaid adapts the Plaid API to port.AccountDataProvider.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/resilience"

	plaidapi "github.com/plaid/plaid-go/v29/plaid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("plaid")

// Config is the Plaid credential set, built once from config.Config.
type Config struct {
	ClientID string
	Secret   string
	Env      string // sandbox | production
}

// Client calls Plaid with retry, circuit breaker, bulkhead and tracing.
type Client struct {
	api      *plaidapi.APIClient
	cb       *gobreaker.CircuitBreaker
	bulkhead *resilience.Bulkhead
	cfg      resilience.Config
	logger   *zap.Logger
}

// NewClient creates a Plaid client. The given http.Client carries the
// per-call timeout.
func NewClient(pc Config, httpClient *http.Client, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) (*Client, error) {
	env, err := environment(pc.Env)
	if err != nil {
		return nil, err
	}

	conf := plaidapi.NewConfiguration()
	conf.AddDefaultHeader("PLAID-CLIENT-ID", pc.ClientID)
	conf.AddDefaultHeader("PLAID-SECRET", pc.Secret)
	conf.UseEnvironment(env)
	conf.HTTPClient = httpClient

	return &Client{
		api:      plaidapi.NewAPIClient(conf),
		cb:       cb,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func environment(name string) (plaidapi.Environment, error) {
	switch name {
	case "sandbox":
		return plaidapi.Sandbox, nil
	case "production":
		return plaidapi.Production, nil
	default:
		return "", fmt.Errorf("plaid environment should be either `sandbox` or `production`, got %q", name)
	}
}

// call runs fn through the bulkhead, the circuit breaker and the retry loop,
// mapping failures to domain errors for the given service label.
func (c *Client) call(ctx context.Context, service string, fn func(ctx context.Context) (*http.Response, error)) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrTimeout{Operation: service}
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			resp, err := fn(ctx)
			if err == nil {
				return nil
			}
			// 4xx means a bad credential or request; retrying will not help.
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return resilience.Permanent(fmt.Errorf("plaid returned status %d: %w", resp.StatusCode, describe(err)))
			}
			return describe(err)
		})
	})

	if err == nil {
		return nil
	}
	c.logger.Warn("plaid call failed", zap.String("service", service), zap.Error(err))

	switch {
	case resilience.IsCircuitOpen(err):
		return &domain.ErrCircuitOpen{Service: service}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: service}
	default:
		return &domain.ErrExternalService{Service: service, Err: err}
	}
}

// describe adds the Plaid error body to SDK errors, which otherwise only
// carry the HTTP status text.
func describe(err error) error {
	var apiErr plaidapi.GenericOpenAPIError
	if errors.As(err, &apiErr) && len(apiErr.Body()) > 0 {
		return fmt.Errorf("%w: %s", err, apiErr.Body())
	}
	return err
}

// GetAccounts fetches the accounts and item of one access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*domain.ProviderAccounts, error) {
	ctx, span := tracer.Start(ctx, "Plaid.AccountsGet")
	defer span.End()

	var resp plaidapi.AccountsGetResponse
	err := c.call(ctx, "plaid/accounts", func(ctx context.Context) (*http.Response, error) {
		req := plaidapi.NewAccountsGetRequest(accessToken)
		r, httpResp, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
		if err == nil {
			resp = r
		}
		return httpResp, err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	item := resp.GetItem()
	out := &domain.ProviderAccounts{
		ItemID:        item.GetItemId(),
		InstitutionID: item.GetInstitutionId(),
	}
	for _, a := range resp.GetAccounts() {
		balances := a.GetBalances()
		out.Accounts = append(out.Accounts, domain.ProviderAccount{
			AccountID:        a.GetAccountId(),
			AvailableBalance: optional(balances.GetAvailableOk()),
			CurrentBalance:   optional(balances.GetCurrentOk()),
			Name:             a.GetName(),
			OfficialName:     a.GetOfficialName(),
			Mask:             a.GetMask(),
			Type:             string(a.GetType()),
			Subtype:          string(a.GetSubtype()),
		})
	}

	span.SetAttributes(attribute.Int("plaid.accounts", len(out.Accounts)))
	return out, nil
}

// GetInstitution fetches institution metadata by id (US institutions).
func (c *Client) GetInstitution(ctx context.Context, institutionID string) (*domain.Institution, error) {
	ctx, span := tracer.Start(ctx, "Plaid.InstitutionsGetById")
	defer span.End()
	span.SetAttributes(attribute.String("institution.id", institutionID))

	var resp plaidapi.InstitutionsGetByIdResponse
	err := c.call(ctx, "plaid/institutions", func(ctx context.Context) (*http.Response, error) {
		req := plaidapi.NewInstitutionsGetByIdRequest(institutionID, []plaidapi.CountryCode{plaidapi.COUNTRYCODE_US})
		r, httpResp, err := c.api.PlaidApi.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*req).Execute()
		if err == nil {
			resp = r
		}
		return httpResp, err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	inst := resp.GetInstitution()
	return &domain.Institution{
		ID:           inst.GetInstitutionId(),
		Name:         inst.GetName(),
		URL:          inst.GetUrl(),
		Logo:         inst.GetLogo(),
		PrimaryColor: inst.GetPrimaryColor(),
	}, nil
}

// SyncTransactionsPage fetches one page of /transactions/sync starting at cursor.
// An empty cursor starts from the beginning of the item's history.
func (c *Client) SyncTransactionsPage(ctx context.Context, accessToken, cursor string) (*domain.SyncPage, error) {
	ctx, span := tracer.Start(ctx, "Plaid.TransactionsSync")
	defer span.End()

	var resp plaidapi.TransactionsSyncResponse
	err := c.call(ctx, "plaid/transactions", func(ctx context.Context) (*http.Response, error) {
		req := plaidapi.NewTransactionsSyncRequest(accessToken)
		if cursor != "" {
			req.SetCursor(cursor)
		}
		r, httpResp, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*req).Execute()
		if err == nil {
			resp = r
		}
		return httpResp, err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	page := &domain.SyncPage{
		HasMore:    resp.GetHasMore(),
		NextCursor: resp.GetNextCursor(),
	}
	for _, t := range resp.GetAdded() {
		page.Added = append(page.Added, domain.ProviderTransaction{
			TransactionID:  t.GetTransactionId(),
			Name:           t.GetName(),
			PaymentChannel: string(t.GetPaymentChannel()),
			AccountID:      t.GetAccountId(),
			Amount:         t.GetAmount(),
			Pending:        t.GetPending(),
			Categories:     t.GetCategory(),
			Date:           t.GetDate(),
			LogoURL:        t.GetLogoUrl(),
		})
	}

	span.SetAttributes(
		attribute.Int("plaid.added", len(page.Added)),
		attribute.Bool("plaid.has_more", page.HasMore),
	)
	return page, nil
}

func optional(v *float64, ok bool) *float64 {
	if !ok || v == nil {
		return nil
	}
	out := *v
	return &out
}
