// Package taxcalc holds the pure income-tax arithmetic: default tables,
// deduction capping, bracket resolution and rate formatting.
// Nothing here performs I/O or keeps state between calls.
package taxcalc

import (
	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultConfiguration builds the built-in configuration for year.
// A fresh value is returned on every call; callers may not share or cache it.
func DefaultConfiguration(year int) domain.TaxConfiguration {
	return domain.TaxConfiguration{
		Year: year,
		Brackets: []domain.TaxBracket{
			bracket("0", "2259.20", "0", "0"),
			bracket("2259.21", "2826.65", "0.075", "169.44"),
			bracket("2826.66", "3751.05", "0.15", "381.44"),
			bracket("3751.06", "4664.68", "0.225", "662.77"),
			bracket("4664.69", "", "0.275", "896.00"),
		},
		DeductionLimits: map[domain.DeductionClass]decimal.Decimal{
			domain.DeductionHealth:     decimal.RequireFromString("6000.00"),
			domain.DeductionEducation:  decimal.RequireFromString("3561.50"),
			domain.DeductionDependents: decimal.RequireFromString("2275.08"),
		},
		ExemptAmount: decimal.RequireFromString("28559.70"),
		MinimumWage:  decimal.RequireFromString("1412.00"),
		IsActive:     true,
		IsDefault:    true,
		Mapping: domain.DeductionMapping{
			ByCategoryName: map[string]domain.DeductionClass{
				"Saúde":    domain.DeductionHealth,
				"Educação": domain.DeductionEducation,
			},
		},
	}
}

func bracket(min, max, rate, deduction string) domain.TaxBracket {
	b := domain.TaxBracket{
		Min:       decimal.RequireFromString(min),
		Rate:      decimal.RequireFromString(rate),
		Deduction: decimal.RequireFromString(deduction),
	}
	if max != "" {
		b.Max = decimal.NewNullDecimal(decimal.RequireFromString(max))
	}
	return b
}
