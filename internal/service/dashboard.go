package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecentTransactionsLimit is the size of the dashboard's recent list.
const RecentTransactionsLimit = 5

// DashboardService aggregates the home-screen summary of a user's ledger.
type DashboardService struct {
	users        port.UserFinder
	accounts     port.AccountLister
	categories   port.CategoryLister
	transactions *TransactionAggregator
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          Clock
}

// NewDashboardService creates the dashboard service with all dependencies injected.
func NewDashboardService(
	users port.UserFinder,
	accounts port.AccountLister,
	categories port.CategoryLister,
	transactions *TransactionAggregator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		users:        users,
		accounts:     accounts,
		categories:   categories,
		transactions: transactions,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the clock that decides the current month.
func (s *DashboardService) WithClock(now Clock) *DashboardService {
	s.now = now
	return s
}

// ComputeDashboard aggregates every transaction of userID. Balance is always
// total income minus total expense over the unfiltered set.
func (s *DashboardService) ComputeDashboard(ctx context.Context, userID int64) (*domain.DashboardSummary, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "DashboardService.ComputeDashboard")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("dashboard", time.Since(start))
	}()

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("dashboard user %d: %w", userID, err)
	}

	var (
		all        []domain.Transaction
		accounts   []domain.Account
		categories []domain.Category
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txs, err := s.transactions.TransactionsFor(gCtx, userID, domain.TransactionFilter{})
		all = txs
		return err
	})

	g.Go(func() error {
		accs, err := s.accounts.ListAccounts(gCtx, userID)
		if err != nil {
			s.metrics.IncrStoreError("accounts")
			return fmt.Errorf("accounts of user %d: %w", userID, err)
		}
		accounts = accs
		return nil
	})

	g.Go(func() error {
		cats, err := s.categories.ListCategories(gCtx, userID)
		if err != nil {
			s.metrics.IncrStoreError("categories")
			return fmt.Errorf("categories of user %d: %w", userID, err)
		}
		categories = cats
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger fetch failed")
		return nil, err
	}

	summary := aggregate(*user, all, accounts, categories, s.now())

	s.metrics.IncrDashboard()
	s.logger.Debug("dashboard computed",
		zap.Int64("user_id", userID),
		zap.Int("transactions", summary.TransactionCount),
	)

	return summary, nil
}

// aggregate folds the ledger into a summary. now selects the current month.
func aggregate(
	user domain.User,
	txs []domain.Transaction,
	accounts []domain.Account,
	categories []domain.Category,
	now time.Time,
) *domain.DashboardSummary {
	income, expense := decimal.Zero, decimal.Zero
	thisMonth := 0
	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionIncome:
			income = income.Add(tx.Amount)
		case domain.TransactionExpense:
			expense = expense.Add(tx.Amount)
		}
		if tx.Date.Year() == now.Year() && tx.Date.Month() == now.Month() {
			thisMonth++
		}
	}

	// One entry per account, duplicates included.
	types := make([]string, 0, len(accounts))
	for _, a := range accounts {
		types = append(types, a.Type)
	}

	// txs arrive newest first from the aggregator.
	recent := make([]domain.Transaction, 0, RecentTransactionsLimit)
	recent = append(recent, txs[:min(RecentTransactionsLimit, len(txs))]...)

	var expenseCats, incomeCats int
	for _, c := range categories {
		switch c.Type {
		case domain.TransactionExpense:
			expenseCats++
		case domain.TransactionIncome:
			incomeCats++
		}
	}

	return &domain.DashboardSummary{
		User:                  user,
		Balance:               income.Sub(expense),
		TotalIncome:           income,
		TotalExpense:          expense,
		TransactionCount:      len(txs),
		TransactionsThisMonth: thisMonth,
		AccountCount:          len(accounts),
		AccountTypes:          types,
		CategoryCount:         len(categories),
		ExpenseCategories:     expenseCats,
		IncomeCategories:      incomeCats,
		RecentTransactions:    recent,
	}
}
