package service_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/cache"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

// mockStore is an in-memory port.LedgerStore. Transaction listing is sloppy
// on purpose (no user scoping, no ordering, no limit) so the aggregator's own
// guarantees are exercised.
type mockStore struct {
	mu sync.Mutex

	users        map[int64]domain.User
	transactions []domain.Transaction
	accounts     []domain.Account
	categories   []domain.Category
	configs      map[int]*domain.TaxConfiguration
	active       *domain.TaxConfiguration

	txErr     error
	configErr error

	configCalls int32
	txCalls     int32
}

func newMockStore() *mockStore {
	return &mockStore{
		users:   map[int64]domain.User{},
		configs: map[int]*domain.TaxConfiguration{},
	}
}

func (m *mockStore) FindUser(_ context.Context, userID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: strconv.FormatInt(userID, 10)}
	}
	return &u, nil
}

func (m *mockStore) ListTransactions(_ context.Context, _ int64, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	atomic.AddInt32(&m.txCalls, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txErr != nil {
		return nil, m.txErr
	}
	var out []domain.Transaction
	for _, tx := range m.transactions {
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *mockStore) ListAccounts(_ context.Context, userID int64) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockStore) ListCategories(_ context.Context, userID int64) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range m.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) FindTaxConfiguration(_ context.Context, year int) (*domain.TaxConfiguration, error) {
	atomic.AddInt32(&m.configCalls, 1)
	if m.configErr != nil {
		return nil, m.configErr
	}
	return m.configs[year], nil
}

func (m *mockStore) FindActiveTaxConfiguration(_ context.Context) (*domain.TaxConfiguration, error) {
	atomic.AddInt32(&m.configCalls, 1)
	if m.configErr != nil {
		return nil, m.configErr
	}
	return m.active, nil
}

// --- Fixtures ---

const (
	healthCategoryID    int64 = 4
	educationCategoryID int64 = 5
	foodCategoryID      int64 = 1
	salaryCategoryID    int64 = 7
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seededStore() *mockStore {
	m := newMockStore()
	m.users[1] = domain.User{ID: 1, Name: "Carlos Silva", Email: "carlos@email.com"}
	m.categories = []domain.Category{
		{ID: foodCategoryID, Name: "Alimentação", Type: domain.TransactionExpense, UserID: 1},
		{ID: healthCategoryID, Name: "Saúde", Type: domain.TransactionExpense, UserID: 1},
		{ID: educationCategoryID, Name: "Educação", Type: domain.TransactionExpense, UserID: 1},
		{ID: salaryCategoryID, Name: "Salário", Type: domain.TransactionIncome, UserID: 1},
	}
	m.accounts = []domain.Account{
		{ID: 1, Name: "Carteira", Type: "wallet", InitialBalance: d("500"), UserID: 1},
		{ID: 2, Name: "Banco Itaú", Type: "bank", InitialBalance: d("2500"), UserID: 1},
		{ID: 3, Name: "Conta 2", Type: "bank", InitialBalance: d("0"), UserID: 1},
	}
	return m
}

var nextTxID int64

func (m *mockStore) add(typ domain.TransactionType, categoryID int64, amount string, date time.Time) {
	m.transactions = append(m.transactions, domain.Transaction{
		ID:         atomic.AddInt64(&nextTxID, 1),
		Type:       typ,
		Amount:     d(amount),
		Date:       date,
		UserID:     1,
		AccountID:  1,
		CategoryID: categoryID,
	})
}

type services struct {
	store     *mockStore
	metrics   *observability.Metrics
	configs   *service.TaxConfigProvider
	txs       *service.TransactionAggregator
	report    *service.TaxReportService
	dashboard *service.DashboardService
}

var fixedNow = time.Date(2024, time.June, 20, 15, 0, 0, 0, time.UTC)

func newServices(store *mockStore) *services {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	now := func() time.Time { return fixedNow }

	configs := service.NewTaxConfigProvider(store, cache.New[*domain.TaxConfiguration](time.Minute), metrics, logger).WithClock(now)
	txs := service.NewTransactionAggregator(store, metrics, logger)

	return &services{
		store:     store,
		metrics:   metrics,
		configs:   configs,
		txs:       txs,
		report:    service.NewTaxReportService(store, store, txs, configs, metrics, logger).WithClock(now),
		dashboard: service.NewDashboardService(store, store, store, txs, metrics, logger).WithClock(now),
	}
}
