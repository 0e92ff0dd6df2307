package taxcalc

import (
	"sort"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// classOrder fixes the report order of the well-known classes.
var classOrder = map[domain.DeductionClass]int{
	domain.DeductionHealth:     0,
	domain.DeductionEducation:  1,
	domain.DeductionDependents: 2,
	domain.DeductionOther:      3,
}

// rateCapped classes carry a percentage cap in stored configurations,
// not an amount, and are not part of the expense deduction path.
var rateCapped = map[domain.DeductionClass]bool{
	domain.DeductionPension:  true,
	domain.DeductionDonation: true,
}

// ResolveDeductions sums mapped expenses per class and caps each sum at the
// class limit. Expenses whose category maps to no configured class are skipped.
// categories is keyed by category id; a missing entry is matched by id only.
func ResolveDeductions(
	expenses []domain.Transaction,
	categories map[int64]domain.Category,
	mapping domain.DeductionMapping,
	limits map[domain.DeductionClass]decimal.Decimal,
) []domain.DeductionDetail {
	spent := make(map[domain.DeductionClass]decimal.Decimal, len(limits))
	for _, tx := range expenses {
		if tx.Type != domain.TransactionExpense {
			continue
		}
		cat, ok := categories[tx.CategoryID]
		if !ok {
			cat = domain.Category{ID: tx.CategoryID}
		}
		class, ok := mapping.ClassOf(cat)
		if !ok {
			continue
		}
		if _, limited := limits[class]; !limited {
			continue
		}
		spent[class] = spent[class].Add(tx.Amount)
	}

	details := make([]domain.DeductionDetail, 0, len(limits))
	for _, class := range orderedClasses(limits) {
		limit := limits[class]
		s := spent[class]
		deducted := decimal.Min(s, limit)
		pct, label := Utilization(deducted, limit)
		details = append(details, domain.DeductionDetail{
			Class:          class,
			Spent:          s,
			Deducted:       deducted,
			Limit:          limit,
			UtilizationPct: pct,
			Utilization:    label,
		})
	}
	return details
}

// TotalDeducted sums the deducted amount of every class.
func TotalDeducted(details []domain.DeductionDetail) decimal.Decimal {
	total := decimal.Zero
	for _, d := range details {
		total = total.Add(d.Deducted)
	}
	return total
}

// Deducted returns the deducted amount for class, zero when absent.
func Deducted(details []domain.DeductionDetail, class domain.DeductionClass) decimal.Decimal {
	for _, d := range details {
		if d.Class == class {
			return d.Deducted
		}
	}
	return decimal.Zero
}

// Utilization returns deducted/limit*100 and its one-decimal label.
// A zero limit yields 0 and "0%".
func Utilization(deducted, limit decimal.Decimal) (decimal.Decimal, string) {
	if limit.IsZero() {
		return decimal.Zero, "0%"
	}
	pct := deducted.Div(limit).Mul(hundred)
	return pct, FormatPercent(pct, 1)
}

func orderedClasses(limits map[domain.DeductionClass]decimal.Decimal) []domain.DeductionClass {
	classes := make([]domain.DeductionClass, 0, len(limits))
	for class := range limits {
		if rateCapped[class] {
			continue
		}
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool {
		oi, iKnown := classOrder[classes[i]]
		oj, jKnown := classOrder[classes[j]]
		switch {
		case iKnown && jKnown:
			return oi < oj
		case iKnown != jKnown:
			return iKnown
		default:
			return classes[i] < classes[j]
		}
	})
	return classes
}
