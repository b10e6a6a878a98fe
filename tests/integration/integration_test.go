package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/gateway"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/handler"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/cache"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock PostgREST ---

var (
	users = []map[string]any{
		{"id": "user-1", "email": "ada@example.com", "first_name": "Ada", "last_name": "Lovelace"},
	}
	banks = []map[string]any{
		{"id": "bank-1", "user_id": "user-1", "access_token": "tok-good", "shareable_id": "c2hhcmUtMQ==", "created_at": "2024-01-01T09:00:00Z"},
		{"id": "bank-2", "user_id": "user-1", "access_token": "tok-broken", "shareable_id": "c2hhcmUtMg==", "created_at": "2024-01-02T09:00:00Z"},
		{"id": "bank-3", "user_id": "user-2", "access_token": "tok-other", "shareable_id": "c2hhcmUtMw==", "created_at": "2024-01-03T09:00:00Z"},
	}
	transfers = []map[string]any{
		{"id": "t-1", "name": "Rent split", "amount": "25.00", "channel": "online", "category": "Transfer",
			"sender_bank_id": "bank-3", "receiver_bank_id": "bank-1", "created_at": "2024-03-02T12:00:00Z"},
	}
)

// postgrest answers the handful of filters the store client sends.
func postgrest(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		match := func(row map[string]any, col string) bool {
			f := q.Get(col)
			return f == "" || "eq."+row[col].(string) == f
		}

		var out []map[string]any
		switch strings.TrimPrefix(r.URL.Path, "/rest/v1/") {
		case "users":
			for _, u := range users {
				if match(u, "id") {
					out = append(out, u)
				}
			}
		case "banks":
			for _, b := range banks {
				if match(b, "id") && match(b, "user_id") {
					out = append(out, b)
				}
			}
		case "transactions":
			or := q.Get("or")
			for _, tr := range transfers {
				if strings.Contains(or, "sender_bank_id.eq."+tr["sender_bank_id"].(string)+",") ||
					strings.Contains(or, "receiver_bank_id.eq."+tr["receiver_bank_id"].(string)+")") {
					out = append(out, tr)
				}
			}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if out == nil {
			out = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
}

// --- Mock account-data provider ---

type fakeProvider struct{}

func (fakeProvider) GetAccounts(_ context.Context, token string) (*domain.ProviderAccounts, error) {
	current, available := 150.25, 120.00
	switch token {
	case "tok-good":
		return &domain.ProviderAccounts{
			InstitutionID: "ins_1",
			Accounts: []domain.ProviderAccount{{
				AccountID: "acc-1", Name: "Checking", Mask: "0000", Type: "depository", Subtype: "checking",
				CurrentBalance: &current, AvailableBalance: &available,
			}},
		}, nil
	default:
		return nil, &domain.ErrExternalService{Service: "plaid/accounts", Err: errors.New("ITEM_LOGIN_REQUIRED")}
	}
}

func (fakeProvider) GetInstitution(_ context.Context, id string) (*domain.Institution, error) {
	return &domain.Institution{ID: id, Name: "First Platypus Bank"}, nil
}

func (fakeProvider) SyncTransactionsPage(_ context.Context, _, cursor string) (*domain.SyncPage, error) {
	switch cursor {
	case "":
		return &domain.SyncPage{
			Added: []domain.ProviderTransaction{
				{TransactionID: "p-1", Name: "Coffee", Amount: 4.5, Date: "2024-03-01", PaymentChannel: "in store", Categories: []string{"Food and Drink"}},
			},
			HasMore:    true,
			NextCursor: "c1",
		}, nil
	case "c1":
		return &domain.SyncPage{
			Added: []domain.ProviderTransaction{
				{TransactionID: "p-2", Name: "Payroll", Amount: -2000, Date: "2024-03-03", PaymentChannel: "online", Categories: []string{"Transfer", "Payroll"}},
			},
			NextCursor: "c2",
		}, nil
	default:
		return &domain.SyncPage{}, nil
	}
}

// --- Flow ---

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// TestIntegration_FullFlow drives the router over the real store client,
// gateway and services, with PostgREST and the provider mocked.
func TestIntegration_FullFlow(t *testing.T) {
	db := postgrest(t)
	defer db.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	store := supabase.NewClient(&http.Client{Timeout: 5 * time.Second}, db.URL, "anon", "service",
		resilience.NewCircuitBreaker("integration-store"), cfg, logger)

	gw := gateway.New(fakeProvider{}, gateway.DefaultMaxSyncPages, metrics, logger)
	institutions := service.NewInstitutionResolver(gw, cache.New[*domain.Institution](16, time.Hour), metrics, logger)
	accounts := service.NewAccountsService(store, gw, institutions,
		service.AggregationConfig{MaxConcurrency: 4, FetchTimeout: 5 * time.Second}, metrics, logger)
	details := service.NewAccountDetailService(store, store, gw, institutions, service.DefaultPageSize, metrics, logger)
	identity := service.NewIdentityService(store, "integration-secret-0123456789", 15*time.Minute, logger)
	dashboard := service.NewDashboardService(identity, accounts, details, logger)

	router := handler.NewRouter(handler.Dependencies{
		Accounts:  accounts,
		Details:   details,
		Dashboard: dashboard,
		Identity:  identity,
		Metrics:   metrics,
		Checks:    []handler.HealthCheck{{Name: "supabase", Check: store.Ping}},
		DevAuth:   true,
		Logger:    logger,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	// --- Readiness ---
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/readyz", "", nil, nil))

	// --- Token ---
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/v1/dev/token", "", map[string]string{"user_id": "user-1"}, &tok))
	require.NotEmpty(t, tok.AccessToken)

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/v1/accounts", "", nil, nil))

	var me domain.User
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/me", tok.AccessToken, nil, &me))
	assert.Equal(t, "Ada", me.FirstName)

	// --- Accounts: bank-2 fails and is left out ---
	var list domain.AccountsResult
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/accounts", tok.AccessToken, nil, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, 1, list.TotalBanks)
	assert.Equal(t, "150.25", list.TotalCurrentBalance.String())
	assert.Equal(t, "bank-1", list.Data[0].BankID)
	require.NotNil(t, list.Data[0].Institution)
	assert.Equal(t, "First Platypus Bank", list.Data[0].Institution.Name)

	// --- Detail: both sync pages plus the received transfer ---
	var detail domain.AccountDetail
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/accounts/bank-1", tok.AccessToken, nil, &detail))
	require.Len(t, detail.Transactions, 3)
	assert.Equal(t, "p-2", detail.Transactions[0].ID)
	assert.Equal(t, "t-1", detail.Transactions[1].ID)
	assert.Equal(t, domain.DirectionCredit, detail.Transactions[1].Direction)
	assert.Equal(t, "p-1", detail.Transactions[2].ID)
	assert.False(t, detail.Degraded)

	// Another user's bank is invisible.
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/v1/accounts/bank-3", tok.AccessToken, nil, nil))

	// --- Transactions page ---
	var page domain.TransactionPage
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/accounts/bank-1/transactions?page=2&page_size=2", tok.AccessToken, nil, &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "p-1", page.Data[0].ID)

	// --- Home ---
	var home domain.Dashboard
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/home", tok.AccessToken, nil, &home))
	require.NotNil(t, home.Selected)
	assert.Equal(t, "bank-1", home.Selected.BankID)
	require.NotNil(t, home.Transactions)
	assert.Len(t, home.Transactions.Data, 3)

	// --- Pipeline metrics ---
	var pm domain.PipelineMetrics
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/v1/metrics/pipeline", "", nil, &pm))
}
