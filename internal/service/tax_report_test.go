package service_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/taxcalc"
)

func day(m time.Month, dd int) time.Time { return domain.Date(2024, m, dd) }

func TestComputeTaxReport_TaxDue(t *testing.T) {
	store := seededStore()
	store.add(domain.TransactionIncome, salaryCategoryID, "25000.00", day(time.March, 5))
	store.add(domain.TransactionIncome, salaryCategoryID, "25000.00", day(time.September, 5))
	svc := newServices(store)

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	calc := report.Calculation
	if !calc.TaxDue.Equal(d("12854")) {
		t.Errorf("expected tax due 12854, got %s", calc.TaxDue)
	}
	if calc.Situation != domain.SituationTaxDue {
		t.Errorf("expected situation %q, got %q", domain.SituationTaxDue, calc.Situation)
	}
	if calc.Bracket == nil || !calc.Bracket.Min.Equal(d("4664.69")) {
		t.Errorf("expected top bracket, got %+v", calc.Bracket)
	}
	if calc.EffectiveRate != "25.71%" {
		t.Errorf("expected effective rate 25.71%%, got %s", calc.EffectiveRate)
	}
	if report.IncomeTransactions != 2 {
		t.Errorf("expected 2 income transactions, got %d", report.IncomeTransactions)
	}
	if want := "Você deve declarar e pagar aproximadamente R$ 12.854,00"; report.Summary.Message != want {
		t.Errorf("expected message %q, got %q", want, report.Summary.Message)
	}
	if want := "Declaração: Até 30/04/2025"; report.Summary.Deadline != want {
		t.Errorf("expected deadline %q, got %q", want, report.Summary.Deadline)
	}
	if report.Summary.Recommendation != "Considere aumentar gastos com saúde para deduzir mais" {
		t.Errorf("unexpected recommendation %q", report.Summary.Recommendation)
	}
	if !report.DefaultConfig {
		t.Error("expected default configuration to be flagged")
	}
	if report.User.Name != "Carlos Silva" {
		t.Errorf("expected user block, got %+v", report.User)
	}
}

func TestComputeTaxReport_Exempt(t *testing.T) {
	store := seededStore()
	store.add(domain.TransactionIncome, salaryCategoryID, "20000.00", day(time.May, 1))
	svc := newServices(store)

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !report.Calculation.TaxDue.IsZero() {
		t.Errorf("expected no tax, got %s", report.Calculation.TaxDue)
	}
	if report.Calculation.Bracket != nil {
		t.Errorf("expected no bracket, got %+v", report.Calculation.Bracket)
	}
	if report.Calculation.Situation != domain.SituationExempt {
		t.Errorf("expected exempt, got %s", report.Calculation.Situation)
	}
	if report.Summary.Message != "Você está isento da declaração deste ano! 🎉" {
		t.Errorf("unexpected message %q", report.Summary.Message)
	}
	if report.Calculation.EffectiveRate != "0.00%" {
		t.Errorf("expected 0.00%%, got %s", report.Calculation.EffectiveRate)
	}
}

func TestComputeTaxReport_DeductionsReduceTaxableIncome(t *testing.T) {
	store := seededStore()
	store.add(domain.TransactionIncome, salaryCategoryID, "50000.00", day(time.January, 10))
	store.add(domain.TransactionExpense, healthCategoryID, "5000.00", day(time.February, 1))
	store.add(domain.TransactionExpense, healthCategoryID, "3000.00", day(time.August, 1))
	store.add(domain.TransactionExpense, educationCategoryID, "1000.00", day(time.March, 1))
	store.add(domain.TransactionExpense, foodCategoryID, "300.00", day(time.March, 2))
	svc := newServices(store)

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(report.Deductions) != 3 {
		t.Fatalf("expected 3 deduction classes, got %d", len(report.Deductions))
	}
	health := report.Deductions[0]
	if health.Class != domain.DeductionHealth || !health.Spent.Equal(d("8000")) || !health.Deducted.Equal(d("6000")) {
		t.Errorf("unexpected health detail %+v", health)
	}
	if health.Utilization != "100.0%" {
		t.Errorf("expected 100.0%%, got %s", health.Utilization)
	}
	education := report.Deductions[1]
	if !education.Deducted.Equal(d("1000")) || education.Utilization != "28.1%" {
		t.Errorf("unexpected education detail %+v", education)
	}

	if !report.TotalDeductions.Equal(d("7000")) {
		t.Errorf("expected 7000 deducted, got %s", report.TotalDeductions)
	}
	if !report.Calculation.TaxableIncome.Equal(d("43000")) {
		t.Errorf("expected taxable 43000, got %s", report.Calculation.TaxableIncome)
	}
	if !report.Calculation.TaxDue.Equal(d("10929")) {
		t.Errorf("expected tax due 10929, got %s", report.Calculation.TaxDue)
	}
	if report.Summary.Recommendation != "Deduções otimizadas" {
		t.Errorf("unexpected recommendation %q", report.Summary.Recommendation)
	}
}

func TestComputeTaxReport_OnlyFiscalYearCounts(t *testing.T) {
	store := seededStore()
	store.add(domain.TransactionIncome, salaryCategoryID, "90000.00", domain.Date(2023, time.December, 31))
	store.add(domain.TransactionIncome, salaryCategoryID, "10000.00", day(time.January, 1))
	store.add(domain.TransactionIncome, salaryCategoryID, "10000.00", day(time.December, 31))
	store.add(domain.TransactionIncome, salaryCategoryID, "90000.00", domain.Date(2025, time.January, 1))
	svc := newServices(store)

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !report.TotalIncome.Equal(d("20000")) {
		t.Errorf("expected income 20000, got %s", report.TotalIncome)
	}
}

func TestComputeTaxReport_YearZeroUsesClock(t *testing.T) {
	store := seededStore()
	svc := newServices(store)

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Year != fixedNow.Year() {
		t.Errorf("expected year %d, got %d", fixedNow.Year(), report.Year)
	}
}

func TestComputeTaxReport_ZeroTransactions(t *testing.T) {
	svc := newServices(seededStore())

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !report.TotalIncome.IsZero() || report.Calculation.EffectiveRate != "0%" {
		t.Errorf("expected empty report, got income %s rate %s", report.TotalIncome, report.Calculation.EffectiveRate)
	}
	if report.Calculation.Situation != domain.SituationExempt {
		t.Errorf("expected exempt, got %s", report.Calculation.Situation)
	}
}

func TestComputeTaxReport_InvalidInputNeverTouchesStore(t *testing.T) {
	cases := []struct {
		name   string
		userID int64
		year   int
		field  string
	}{
		{"zero user", 0, 2024, "userId"},
		{"negative user", -3, 2024, "userId"},
		{"year too small", 1, 1899, "year"},
		{"year too large", 1, 3000, "year"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := seededStore()
			svc := newServices(store)

			_, err := svc.report.ComputeTaxReport(context.Background(), tc.userID, tc.year)

			var ve *domain.ErrValidation
			if !errors.As(err, &ve) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, ve.Field)
			}
			if store.configCalls != 0 {
				t.Errorf("expected no store access, got %d config calls", store.configCalls)
			}
		})
	}
}

func TestComputeTaxReport_UnknownUser(t *testing.T) {
	svc := newServices(seededStore())

	_, err := svc.report.ComputeTaxReport(context.Background(), 42, 2024)

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestComputeTaxReport_StorageFailureYieldsNoReport(t *testing.T) {
	store := seededStore()
	store.txErr = &domain.ErrStorageUnavailable{Store: "mock", Err: errors.New("connection refused")}
	svc := newServices(store)

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)

	if report != nil {
		t.Errorf("expected no partial report, got %+v", report)
	}
	var su *domain.ErrStorageUnavailable
	if !errors.As(err, &su) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestComputeTaxReport_InconsistentStoredConfig(t *testing.T) {
	store := seededStore()
	broken := taxcalc.DefaultConfiguration(2024)
	broken.IsDefault = false
	broken.Brackets = broken.Brackets[:len(broken.Brackets)-1] // no unbounded bracket
	store.configs[2024] = &broken
	store.add(domain.TransactionIncome, salaryCategoryID, "50000.00", day(time.April, 1))
	svc := newServices(store)

	_, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)

	var ie *domain.ErrConfigurationIntegrity
	if !errors.As(err, &ie) {
		t.Fatalf("expected ErrConfigurationIntegrity, got %v", err)
	}
	if got := svc.metrics.Snapshot().IntegrityErrors; got != 1 {
		t.Errorf("expected 1 integrity error recorded, got %d", got)
	}
}

func TestComputeTaxReport_StoredConfigMappingByID(t *testing.T) {
	store := seededStore()
	stored := taxcalc.DefaultConfiguration(2024)
	stored.IsDefault = false
	stored.Mapping = domain.DeductionMapping{
		ByCategoryID: map[int64]domain.DeductionClass{foodCategoryID: domain.DeductionHealth},
	}
	store.configs[2024] = &stored
	store.add(domain.TransactionIncome, salaryCategoryID, "50000.00", day(time.April, 1))
	store.add(domain.TransactionExpense, foodCategoryID, "1500.00", day(time.April, 2))
	store.add(domain.TransactionExpense, healthCategoryID, "1500.00", day(time.April, 3))
	svc := newServices(store)

	report, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.DefaultConfig {
		t.Error("expected stored configuration")
	}
	if got := taxcalc.Deducted(report.Deductions, domain.DeductionHealth); !got.Equal(d("1500")) {
		t.Errorf("expected only the id-mapped category to count, got %s", got)
	}
}

func TestComputeTaxReport_Idempotent(t *testing.T) {
	store := seededStore()
	store.add(domain.TransactionIncome, salaryCategoryID, "41234.56", day(time.July, 7))
	store.add(domain.TransactionExpense, healthCategoryID, "777.77", day(time.July, 8))
	svc := newServices(store)

	first, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical reports:\n%+v\n%+v", first, second)
	}
}

func TestComputeTaxReport_CountsSituationMetrics(t *testing.T) {
	store := seededStore()
	store.add(domain.TransactionIncome, salaryCategoryID, "10000.00", day(time.July, 7))
	svc := newServices(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.report.ComputeTaxReport(context.Background(), 1, 2024); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	snap := svc.metrics.Snapshot()
	if snap.ReportsComputed != 3 || snap.ExemptReports != 3 {
		t.Errorf("expected 3 exempt reports, got %+v", snap)
	}
	if snap.ConfigFallbacks != 3 {
		t.Errorf("expected a fallback per report, got %d", snap.ConfigFallbacks)
	}
}
