package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/gateway"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/cache"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockBankStore struct {
	banks []domain.Bank
	err   error
}

func (m *mockBankStore) ListBanks(_ context.Context, userID string) ([]domain.Bank, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Bank
	for _, b := range m.banks {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBankStore) GetBank(_ context.Context, bankID string) (*domain.Bank, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, b := range m.banks {
		if b.ID == bankID {
			return &b, nil
		}
	}
	return nil, nil
}

type mockTransferStore struct {
	transfers []domain.Transfer
	err       error
}

func (m *mockTransferStore) ListTransfersByBank(_ context.Context, bankID string) ([]domain.Transfer, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Transfer
	for _, t := range m.transfers {
		if t.SenderBankID == bankID || t.ReceiverBankID == bankID {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockUserStore struct {
	users map[string]*domain.User
	err   error
}

func (m *mockUserStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[userID], nil
}

// mockProvider serves canned provider data keyed by access token.
type mockProvider struct {
	mu sync.Mutex

	accounts     map[string]*domain.ProviderAccounts
	accountErrs  map[string]error
	institutions map[string]*domain.Institution
	instErr      error
	pages        map[string][]*domain.SyncPage
	// hang lists tokens whose accounts call blocks until ctx is done.
	hang map[string]bool

	institutionCalls int
}

func (m *mockProvider) GetAccounts(ctx context.Context, token string) (*domain.ProviderAccounts, error) {
	if m.hang[token] {
		<-ctx.Done()
		return nil, &domain.ErrTimeout{Operation: "plaid/accounts"}
	}
	if err := m.accountErrs[token]; err != nil {
		return nil, err
	}
	if acc, ok := m.accounts[token]; ok {
		return acc, nil
	}
	return &domain.ProviderAccounts{}, nil
}

func (m *mockProvider) GetInstitution(_ context.Context, id string) (*domain.Institution, error) {
	m.mu.Lock()
	m.institutionCalls++
	m.mu.Unlock()
	if m.instErr != nil {
		return nil, m.instErr
	}
	if inst, ok := m.institutions[id]; ok {
		return inst, nil
	}
	return nil, &domain.ErrExternalService{Service: "plaid/institutions", Err: errors.New("INVALID_INSTITUTION")}
}

func (m *mockProvider) SyncTransactionsPage(_ context.Context, token, cursor string) (*domain.SyncPage, error) {
	pages := m.pages[token]
	idx := 0
	if cursor != "" {
		for i, p := range pages {
			if p.NextCursor == cursor {
				idx = i + 1
			}
		}
	}
	if idx >= len(pages) {
		return &domain.SyncPage{}, nil
	}
	return pages[idx], nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.institutionCalls
}

// --- Fixture ---

type fixture struct {
	banks     *mockBankStore
	transfers *mockTransferStore
	users     *mockUserStore
	provider  *mockProvider
	metrics   *observability.Metrics

	resolver  *service.InstitutionResolver
	accounts  *service.AccountsService
	details   *service.AccountDetailService
	identity  *service.IdentityService
	dashboard *service.DashboardService
}

const testSecret = "test-secret-0123456789"

func newFixture() *fixture {
	f := &fixture{
		banks:     &mockBankStore{},
		transfers: &mockTransferStore{},
		users:     &mockUserStore{users: map[string]*domain.User{}},
		provider: &mockProvider{
			accounts:     map[string]*domain.ProviderAccounts{},
			accountErrs:  map[string]error{},
			institutions: map[string]*domain.Institution{"ins_1": {ID: "ins_1", Name: "First Platypus Bank"}},
			pages:        map[string][]*domain.SyncPage{},
			hang:         map[string]bool{},
		},
		metrics: observability.NewMetrics(),
	}
	logger := zap.NewNop()
	gw := gateway.New(f.provider, 10, f.metrics, logger)

	f.resolver = service.NewInstitutionResolver(gw, cache.New[*domain.Institution](16, time.Hour), f.metrics, logger)
	f.accounts = service.NewAccountsService(f.banks, gw, f.resolver,
		service.AggregationConfig{MaxConcurrency: 4, FetchTimeout: time.Second}, f.metrics, logger)
	f.details = service.NewAccountDetailService(f.banks, f.transfers, gw, f.resolver, 10, f.metrics, logger)
	f.identity = service.NewIdentityService(f.users, testSecret, time.Minute, logger)
	f.dashboard = service.NewDashboardService(f.identity, f.accounts, f.details, logger)
	return f
}

// linkBank registers a bank for userID whose provider returns one account
// with the given current balance (nil = missing).
func (f *fixture) linkBank(userID, bankID string, current *float64) {
	token := "tok-" + bankID
	f.banks.banks = append(f.banks.banks, domain.Bank{
		ID:          bankID,
		UserID:      userID,
		AccessToken: token,
		ShareableID: "share-" + bankID,
	})
	f.provider.accounts[token] = &domain.ProviderAccounts{
		InstitutionID: "ins_1",
		Accounts: []domain.ProviderAccount{{
			AccountID:      "acc-" + bankID,
			Name:           "Checking " + bankID,
			CurrentBalance: current,
			Type:           "depository",
			Subtype:        "checking",
		}},
	}
}

func (f *fixture) failBank(bankID string) {
	f.provider.accountErrs["tok-"+bankID] = &domain.ErrExternalService{Service: "plaid/accounts", Err: errors.New("ITEM_LOGIN_REQUIRED")}
}

func ptr(v float64) *float64 { return &v }
