package taxcalc

import (
	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// TaxResult is the outcome of ResolveTax. Bracket is nil when exempt.
type TaxResult struct {
	Bracket *domain.TaxBracket
	TaxDue  decimal.Decimal
}

// Exempt reports whether no bracket applied.
func (r TaxResult) Exempt() bool {
	return r.Bracket == nil
}

// ResolveTax applies the progressive table to taxableIncome:
// taxDue = max(0, income*rate - deduction) for the first matching bracket.
// Income at or below the exempt amount owes nothing. A non-exempt income that
// no bracket covers is reported as *domain.ErrConfigurationIntegrity.
func ResolveTax(taxableIncome decimal.Decimal, cfg domain.TaxConfiguration) (TaxResult, error) {
	if taxableIncome.LessThanOrEqual(cfg.ExemptAmount) {
		return TaxResult{TaxDue: decimal.Zero}, nil
	}

	for i := range cfg.Brackets {
		if !cfg.Brackets[i].Contains(taxableIncome) {
			continue
		}
		b := cfg.Brackets[i]
		due := taxableIncome.Mul(b.Rate).Sub(b.Deduction)
		return TaxResult{Bracket: &b, TaxDue: decimal.Max(decimal.Zero, due)}, nil
	}

	return TaxResult{}, &domain.ErrConfigurationIntegrity{
		Year:          cfg.Year,
		TaxableIncome: taxableIncome,
	}
}

// TaxableIncome is income minus deductions, floored at zero.
func TaxableIncome(totalIncome, totalDeductions decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, totalIncome.Sub(totalDeductions))
}
