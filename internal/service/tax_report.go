package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/port"
	"github.com/boddenberg/irpf-engine/internal/taxcalc"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// healthRecommendationThreshold flags an under-used health deduction.
var healthRecommendationThreshold = decimal.NewFromInt(1000)

const (
	msgTaxDue              = "Você deve declarar e pagar aproximadamente %s"
	msgExempt              = "Você está isento da declaração deste ano! 🎉"
	msgDeadline            = "Declaração: Até 30/04/%d"
	msgRaiseHealthExpenses = "Considere aumentar gastos com saúde para deduzir mais"
	msgDeductionsOptimized = "Deduções otimizadas"
)

// TaxReportService builds the annual income-tax report of a user.
type TaxReportService struct {
	users        port.UserFinder
	categories   port.CategoryLister
	transactions *TransactionAggregator
	configs      *TaxConfigProvider
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          Clock
}

// NewTaxReportService creates the report service with all dependencies injected.
func NewTaxReportService(
	users port.UserFinder,
	categories port.CategoryLister,
	transactions *TransactionAggregator,
	configs *TaxConfigProvider,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TaxReportService {
	return &TaxReportService{
		users:        users,
		categories:   categories,
		transactions: transactions,
		configs:      configs,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the clock used when no year is requested.
func (s *TaxReportService) WithClock(now Clock) *TaxReportService {
	s.now = now
	return s
}

// ComputeTaxReport computes the report of userID for year. Year 0 means the
// current calendar year. The result depends only on stored data, so repeated
// calls over unchanged data return identical reports.
func (s *TaxReportService) ComputeTaxReport(ctx context.Context, userID int64, year int) (*domain.TaxReport, error) {
	if year == 0 {
		year = s.now().Year()
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := validateYear(year); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "TaxReportService.ComputeTaxReport")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("tax.year", year),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("tax_report", time.Since(start))
	}()

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("tax report user %d: %w", userID, err)
	}

	cfg, err := s.configs.ConfigFor(ctx, year)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// --- Fetch income, expenses and categories concurrently ---
	var (
		income     []domain.Transaction
		expenses   []domain.Transaction
		categories []domain.Category
	)
	fiscalYear := domain.YearRange(year)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txs, err := s.transactions.TransactionsFor(gCtx, userID, domain.TransactionFilter{
			Type:  domain.OfType(domain.TransactionIncome),
			Range: &fiscalYear,
		})
		income = txs
		return err
	})

	g.Go(func() error {
		txs, err := s.transactions.TransactionsFor(gCtx, userID, domain.TransactionFilter{
			Type:  domain.OfType(domain.TransactionExpense),
			Range: &fiscalYear,
		})
		expenses = txs
		return err
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

	byID := make(map[int64]domain.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	// --- Deductions, taxable income, bracket ---
	totalIncome := taxcalc.Sum(income)
	deductions := taxcalc.ResolveDeductions(expenses, byID, cfg.Mapping, cfg.DeductionLimits)
	totalDeductions := taxcalc.TotalDeducted(deductions)
	taxable := taxcalc.TaxableIncome(totalIncome, totalDeductions)

	result, err := taxcalc.ResolveTax(taxable, *cfg)
	if err != nil {
		var integrity *domain.ErrConfigurationIntegrity
		if errors.As(err, &integrity) {
			s.metrics.IncrIntegrityError()
		}
		s.logger.Error("tax configuration has no bracket for taxable income",
			zap.Int64("user_id", userID),
			zap.Int("year", year),
			zap.String("taxable_income", taxable.StringFixed(2)),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "configuration integrity")
		return nil, err
	}

	ratePct, rateLabel := taxcalc.EffectiveRate(result.TaxDue, totalIncome)

	report := &domain.TaxReport{
		Year:               year,
		User:               *user,
		TotalIncome:        totalIncome,
		IncomeTransactions: len(income),
		TotalDeductions:    totalDeductions,
		Deductions:         deductions,
		Calculation: domain.TaxCalculation{
			TaxableIncome:    taxable,
			Bracket:          result.Bracket,
			TaxDue:           result.TaxDue,
			EffectiveRatePct: ratePct,
			EffectiveRate:    rateLabel,
			Situation:        situationOf(result.TaxDue),
		},
		Summary:       summarize(year, result.TaxDue, taxcalc.Deducted(deductions, domain.DeductionHealth)),
		DefaultConfig: cfg.IsDefault,
	}

	s.metrics.IncrReport(report.Calculation.Situation)
	span.SetAttributes(
		attribute.String("tax.situation", report.Calculation.Situation),
		attribute.Bool("tax.default_config", cfg.IsDefault),
	)

	s.logger.Info("tax report computed",
		zap.Int64("user_id", userID),
		zap.Int("year", year),
		zap.String("situation", report.Calculation.Situation),
		zap.Int("income_transactions", len(income)),
		zap.Int("expense_transactions", len(expenses)),
	)

	return report, nil
}

func situationOf(taxDue decimal.Decimal) string {
	if taxDue.IsPositive() {
		return domain.SituationTaxDue
	}
	return domain.SituationExempt
}

func summarize(year int, taxDue, healthDeducted decimal.Decimal) domain.ReportSummary {
	summary := domain.ReportSummary{
		Message:        msgExempt,
		Deadline:       fmt.Sprintf(msgDeadline, year+1),
		Recommendation: msgDeductionsOptimized,
	}
	if taxDue.IsPositive() {
		summary.Message = fmt.Sprintf(msgTaxDue, taxcalc.FormatBRL(taxDue))
	}
	if healthDeducted.LessThan(healthRecommendationThreshold) {
		summary.Recommendation = msgRaiseHealthExpenses
	}
	return summary
}
