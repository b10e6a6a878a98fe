package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(
		srv.Client(),
		srv.URL,
		"anon-key",
		"service-key",
		resilience.NewCircuitBreaker("supabase-test"),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4},
		zap.NewNop(),
	)
}

func TestListBanks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/banks", r.URL.Path)
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "created_at.asc", r.URL.Query().Get("order"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.Write([]byte(`[
			{"id":"b1","user_id":"user-1","access_token":"tok-1","item_id":null,"shareable_id":"s1","created_at":"2024-01-01T10:00:00Z"},
			{"id":"b2","user_id":"user-1","access_token":"tok-2","shareable_id":"s2","created_at":"2024-01-02T10:00:00Z"}
		]`))
	})

	banks, err := c.ListBanks(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "b1", banks[0].ID)
	assert.Equal(t, "tok-1", banks[0].AccessToken)
	assert.Equal(t, "", banks[0].ItemID)
	assert.Equal(t, "s2", banks[1].ShareableID)
}

func TestGetBank_Absent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	bank, err := c.GetBank(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, bank)
}

func TestListTransfersByBank(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/transactions", r.URL.Path)
		assert.Equal(t, "(sender_bank_id.eq.b1,receiver_bank_id.eq.b1)", r.URL.Query().Get("or"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		w.Write([]byte(`[
			{"id":"t2","name":"Dinner","amount":42.10,"channel":"online","category":"Transfer","sender_bank_id":"b1","receiver_bank_id":"b9","created_at":"2024-02-02T12:00:00Z"},
			{"id":"t1","name":"Rent","amount":"900","channel":"online","category":"Transfer","sender_bank_id":"b9","receiver_bank_id":"b1","created_at":"2024-02-01T12:00:00Z"}
		]`))
	})

	transfers, err := c.ListTransfersByBank(context.Background(), "b1")

	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, "42.1", transfers[0].Amount.String())
	assert.Equal(t, "900", transfers[1].Amount.String())
	assert.Equal(t, "b1", transfers[1].ReceiverBankID)
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("id"))
		w.Write([]byte(`[{"id":"user-1","email":"ada@example.com","first_name":"Ada","last_name":"Lovelace"}]`))
	})

	user, err := c.GetUser(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Lovelace", user.LastName)
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	})

	_, err := c.ListBanks(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"column does not exist"}`))
	})

	_, err := c.ListBanks(context.Background(), "user-1")

	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "store/banks", ext.Service)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		w.Write([]byte(`[]`))
	})

	assert.NoError(t, c.Ping(context.Background()))
}
