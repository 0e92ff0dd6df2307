package taxcalc

import (
	"strings"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Sum adds transaction amounts without floating-point drift.
func Sum(txs []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// EffectiveRate returns taxDue/totalIncome*100 and its two-decimal label.
// Zero income yields 0 and "0%".
func EffectiveRate(taxDue, totalIncome decimal.Decimal) (decimal.Decimal, string) {
	if totalIncome.IsZero() {
		return decimal.Zero, "0%"
	}
	pct := taxDue.Div(totalIncome).Mul(hundred)
	return pct, FormatPercent(pct, 2)
}

// FormatPercent renders pct with the given number of decimals and a "%" suffix.
func FormatPercent(pct decimal.Decimal, places int32) string {
	return pct.StringFixed(places) + "%"
}

// FormatBRL renders v as Brazilian currency, e.g. "R$ 12.854,00".
func FormatBRL(v decimal.Decimal) string {
	fixed := v.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}
