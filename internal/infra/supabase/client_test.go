package supabase_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/resilience"
	"github.com/boddenberg/irpf-engine/internal/infra/supabase"
)

func newClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	return supabase.NewClient(srv.Client(), srv.URL, "anon", "service", cfg, zap.NewNop())
}

func TestFindUser_Found(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		assert.Equal(t, "eq.3", r.URL.Query().Get("id"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":3,"name":"Pedro Oliveira","email":"pedro@email.com"}]`))
	})

	u, err := c.FindUser(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Pedro Oliveira", u.Name)
}

func TestFindUser_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[]`))
	})

	_, err := c.FindUser(context.Background(), 99)

	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "expected ErrNotFound, got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListTransactions_TranslatesFilter(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/rest/v1/transactions", r.URL.Path)
		assert.Equal(t, "eq.7", q.Get("user_id"))
		assert.Equal(t, "eq.income", q.Get("type"))
		assert.Equal(t, []string{"gte.2024-01-01", "lte.2024-12-31"}, q["date"])
		assert.Equal(t, "date.desc,id.desc", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))
		w.Write([]byte(`[
			{"id":2,"type":"income","amount":"1500.10","description":null,"date":"2024-06-02","user_id":7,"account_id":1,"category_id":9},
			{"id":1,"type":"income","amount":320.5,"description":"Freelance projeto","date":"2024-03-01T00:00:00Z","user_id":7,"account_id":1,"category_id":9}
		]`))
	})

	r := domain.YearRange(2024)
	txs, err := c.ListTransactions(context.Background(), 7, domain.TransactionFilter{
		Type:  domain.OfType(domain.TransactionIncome),
		Range: &r,
		Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("1500.10")))
	assert.Equal(t, "", txs[0].Description)
	assert.Equal(t, domain.Date(2024, time.March, 1), txs[1].Date)
}

func TestListTransactions_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	})

	txs, err := c.ListTransactions(context.Background(), 1, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestListAccounts_StorageUnavailable(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ListAccounts(context.Background(), 1)

	var su *domain.ErrStorageUnavailable
	require.True(t, errors.As(err, &su), "expected ErrStorageUnavailable, got %v", err)
	assert.Equal(t, "supabase/accounts", su.Store)
}

func TestListCategories_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.ListCategories(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFindTaxConfiguration_AssemblesMapping(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/tax_configs":
			assert.Equal(t, "eq.2024", r.URL.Query().Get("year"))
			w.Write([]byte(`[{
				"id": 4, "year": 2024, "is_active": true,
				"tax_brackets": [
					{"min":0,"max":2259.20,"rate":0,"deduction":0},
					{"min":2259.21,"max":null,"rate":0.075,"deduction":169.44}
				],
				"deduction_limits": "{\"health\":6000,\"education\":3561.50,\"donations\":0.08}",
				"category_names": {"Educação":"education"},
				"exempt_amount": 28559.70,
				"minimum_wage": 1412
			}]`))
		case "/rest/v1/tax_categories":
			assert.Equal(t, "eq.4", r.URL.Query().Get("tax_config_id"))
			w.Write([]byte(`[{"category_id":14,"deduction_type":"health"}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	cfg, err := c.FindTaxConfiguration(context.Background(), 2024)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Brackets, 2)
	assert.True(t, cfg.Brackets[1].Unbounded())
	assert.True(t, cfg.DeductionLimits[domain.DeductionEducation].Equal(decimal.RequireFromString("3561.50")))
	assert.Contains(t, cfg.DeductionLimits, domain.DeductionDonation)
	assert.Equal(t, domain.DeductionHealth, cfg.Mapping.ByCategoryID[14])

	class, ok := cfg.Mapping.ClassOf(domain.Category{ID: 2, Name: "educacao"})
	assert.True(t, ok)
	assert.Equal(t, domain.DeductionEducation, class)
}

func TestFindActiveTaxConfiguration_Absent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.true", r.URL.Query().Get("is_active"))
		w.Write([]byte(`[]`))
	})

	cfg, err := c.FindActiveTaxConfiguration(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestFindTaxConfiguration_CorruptRowIsIntegrityError(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path == "/rest/v1/tax_categories" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"id":1,"year":2022,"tax_brackets":"not json","deduction_limits":{},"exempt_amount":"28559.70","is_active":true}]`))
	})

	_, err := c.FindTaxConfiguration(context.Background(), 2022)

	var integrity *domain.ErrConfigurationIntegrity
	require.True(t, errors.As(err, &integrity), "expected ErrConfigurationIntegrity, got %v", err)
	assert.Equal(t, 2022, integrity.Year)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "corrupt rows are not retried")
}

func TestListTransactions_RejectsUnknownType(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"type":"transfer","amount":"10.00","date":"2024-03-01","user_id":1,"account_id":1,"category_id":1}]`))
	})

	_, err := c.ListTransactions(context.Background(), 1, domain.TransactionFilter{})

	var su *domain.ErrStorageUnavailable
	require.True(t, errors.As(err, &su), "expected ErrStorageUnavailable, got %v", err)
	assert.Contains(t, err.Error(), "transfer")
}

func TestReady_FailsWhileBreakerOpen(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	require.NoError(t, c.Ready())

	// three attempts per call; the breaker trips after five failures
	for i := 0; i < 2; i++ {
		_, err := c.ListAccounts(context.Background(), 1)
		require.Error(t, err)
	}

	var su *domain.ErrStorageUnavailable
	err := c.Ready()
	require.True(t, errors.As(err, &su), "expected ErrStorageUnavailable, got %v", err)
	assert.Equal(t, "supabase", su.Store)
}
