package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/handler"
	"github.com/boddenberg/irpf-engine/internal/infra/cache"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeStore is a fixed in-memory port.LedgerStore.
type fakeStore struct {
	users        map[int64]domain.User
	transactions []domain.Transaction
	accounts     []domain.Account
	categories   []domain.Category
	active       *domain.TaxConfiguration

	err      error
	notReady error
}

func (f *fakeStore) Ready() error { return f.notReady }

func (f *fakeStore) FindUser(_ context.Context, userID int64) (*domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: strconv.FormatInt(userID, 10)}
	}
	return &u, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, userID int64, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Transaction{}
	for _, tx := range f.transactions {
		if tx.UserID == userID && filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAccounts(_ context.Context, userID int64) ([]domain.Account, error) {
	return f.accounts, nil
}

func (f *fakeStore) ListCategories(_ context.Context, userID int64) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) FindTaxConfiguration(_ context.Context, year int) (*domain.TaxConfiguration, error) {
	if f.active != nil && f.active.Year == year {
		return f.active, nil
	}
	return nil, nil
}

func (f *fakeStore) FindActiveTaxConfiguration(_ context.Context) (*domain.TaxConfiguration, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.active, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]domain.User{
			1: {ID: 1, Name: "Carlos Silva", Email: "carlos@email.com"},
		},
		accounts: []domain.Account{
			{ID: 1, Name: "Carteira", Type: "wallet", UserID: 1},
		},
		categories: []domain.Category{
			{ID: 4, Name: "Saúde", Type: domain.TransactionExpense, UserID: 1},
			{ID: 7, Name: "Salário", Type: domain.TransactionIncome, UserID: 1},
		},
	}
}

func (f *fakeStore) add(id int64, typ domain.TransactionType, amount, date, description string) {
	d, _ := time.Parse(domain.DateLayout, date)
	category := int64(7)
	if typ == domain.TransactionExpense {
		category = 4
	}
	f.transactions = append(f.transactions, domain.Transaction{
		ID:          id,
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Description: description,
		Date:        d,
		UserID:      1,
		AccountID:   1,
		CategoryID:  category,
	})
}

var fixedNow = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

func newTestRouter(store *fakeStore, opts handler.Options) (http.Handler, *observability.Metrics) {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	now := func() time.Time { return fixedNow }

	configs := service.NewTaxConfigProvider(store, cache.New[*domain.TaxConfiguration](time.Minute), metrics, logger).WithClock(now)
	txs := service.NewTransactionAggregator(store, metrics, logger)

	svc := handler.Services{
		Reports:    service.NewTaxReportService(store, store, txs, configs, metrics, logger).WithClock(now),
		Dashboards: service.NewDashboardService(store, store, store, txs, metrics, logger).WithClock(now),
		Configs:    configs,
		Store:      store,
	}
	return handler.NewRouter(svc, metrics, logger, opts), metrics
}

func get(router http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
