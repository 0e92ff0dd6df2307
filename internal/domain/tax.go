package domain

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ============================================================
// Tax configuration
// ============================================================

// DeductionClass is a named kind of deductible expense with its own cap.
type DeductionClass string

const (
	DeductionHealth     DeductionClass = "health"
	DeductionEducation  DeductionClass = "education"
	DeductionDependents DeductionClass = "dependents"
	DeductionPension    DeductionClass = "pension"
	DeductionDonation   DeductionClass = "donation"
	DeductionOther      DeductionClass = "other"
)

// ParseDeductionClass maps stored spellings onto a DeductionClass.
// Unknown names are kept as-is so that administered classes still render.
func ParseDeductionClass(s string) DeductionClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "health", "saude":
		return DeductionHealth
	case "education", "educacao":
		return DeductionEducation
	case "dependent", "dependents":
		return DeductionDependents
	case "pension":
		return DeductionPension
	case "donation", "donations":
		return DeductionDonation
	case "other":
		return DeductionOther
	}
	return DeductionClass(strings.ToLower(strings.TrimSpace(s)))
}

// DeductionLimitsFrom keys stored limits by their parsed class.
func DeductionLimitsFrom(raw map[string]decimal.Decimal) map[DeductionClass]decimal.Decimal {
	limits := make(map[DeductionClass]decimal.Decimal, len(raw))
	for name, limit := range raw {
		limits[ParseDeductionClass(name)] = limit
	}
	return limits
}

// TaxCategoryLink is a stored (category id -> deduction class) row.
type TaxCategoryLink struct {
	CategoryID    int64
	DeductionType string
}

// DeductionMappingFrom assembles a mapping from id links and name entries.
func DeductionMappingFrom(links []TaxCategoryLink, names map[string]string) DeductionMapping {
	m := DeductionMapping{}
	if len(links) > 0 {
		m.ByCategoryID = make(map[int64]DeductionClass, len(links))
		for _, l := range links {
			m.ByCategoryID[l.CategoryID] = ParseDeductionClass(l.DeductionType)
		}
	}
	if len(names) > 0 {
		m.ByCategoryName = make(map[string]DeductionClass, len(names))
		for name, class := range names {
			m.ByCategoryName[name] = ParseDeductionClass(class)
		}
	}
	return m
}

// TaxBracket is one contiguous income range of the progressive table.
// Rate is a fraction (0.275 = 27.5%). An invalid Max means unbounded.
type TaxBracket struct {
	Min       decimal.Decimal     `json:"min"`
	Max       decimal.NullDecimal `json:"max"`
	Rate      decimal.Decimal     `json:"rate"`
	Deduction decimal.Decimal     `json:"deduction"`
}

// Unbounded reports whether the bracket has no upper limit.
func (b TaxBracket) Unbounded() bool {
	return !b.Max.Valid
}

// Contains reports whether v falls inside [Min, Max].
func (b TaxBracket) Contains(v decimal.Decimal) bool {
	if v.LessThan(b.Min) {
		return false
	}
	return b.Unbounded() || v.LessThanOrEqual(b.Max.Decimal)
}

// DeductionMapping assigns categories to deduction classes.
// Category ids take precedence over names; names are compared after
// NormalizeCategoryName.
type DeductionMapping struct {
	ByCategoryID   map[int64]DeductionClass  `json:"by_category_id,omitempty"`
	ByCategoryName map[string]DeductionClass `json:"by_category_name,omitempty"`
}

// ClassOf returns the deduction class of c, if any.
func (m DeductionMapping) ClassOf(c Category) (DeductionClass, bool) {
	if class, ok := m.ByCategoryID[c.ID]; ok {
		return class, true
	}
	if len(m.ByCategoryName) == 0 {
		return "", false
	}
	want := NormalizeCategoryName(c.Name)
	for name, class := range m.ByCategoryName {
		if NormalizeCategoryName(name) == want {
			return class, true
		}
	}
	return "", false
}

// NormalizeCategoryName folds case and strips accents ("Saúde" -> "saude").
func NormalizeCategoryName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// TaxConfiguration holds everything the engine needs for one fiscal year.
// Read-only to the engine.
type TaxConfiguration struct {
	Year            int                                `json:"year"`
	Brackets        []TaxBracket                       `json:"tax_brackets"`
	DeductionLimits map[DeductionClass]decimal.Decimal `json:"deduction_limits"`
	ExemptAmount    decimal.Decimal                    `json:"exempt_amount"`
	MinimumWage     decimal.Decimal                    `json:"minimum_wage"`
	IsActive        bool                               `json:"is_active"`
	IsDefault       bool                               `json:"is_default,omitempty"`
	Mapping         DeductionMapping                   `json:"deduction_mapping"`
}

// maxBracketGap is the largest hole allowed between one bracket's Max and the
// next bracket's Min: tables are written in whole cents.
var maxBracketGap = decimal.New(1, -2)

// Validate checks that the brackets cover [0, ∞) without overlap.
func (c TaxConfiguration) Validate() error {
	fail := func(format string, args ...any) error {
		return &ErrConfigurationIntegrity{Year: c.Year, Reason: fmt.Sprintf(format, args...)}
	}

	if len(c.Brackets) == 0 {
		return fail("no tax brackets")
	}
	if c.ExemptAmount.IsNegative() {
		return fail("negative exempt amount")
	}
	for class, limit := range c.DeductionLimits {
		if limit.IsNegative() {
			return fail("negative %s deduction limit", class)
		}
	}
	if !c.Brackets[0].Min.IsZero() {
		return fail("first bracket starts at %s, want 0", c.Brackets[0].Min.String())
	}
	for i, b := range c.Brackets {
		last := i == len(c.Brackets)-1
		if b.Rate.IsNegative() || b.Deduction.IsNegative() {
			return fail("bracket %d has a negative rate or deduction", i)
		}
		if b.Unbounded() {
			if !last {
				return fail("bracket %d is unbounded but not last", i)
			}
			continue
		}
		if last {
			return fail("last bracket must be unbounded")
		}
		if b.Max.Decimal.LessThan(b.Min) {
			return fail("bracket %d has max below min", i)
		}
		gap := c.Brackets[i+1].Min.Sub(b.Max.Decimal)
		if !gap.IsPositive() {
			return fail("brackets %d and %d overlap", i, i+1)
		}
		if gap.GreaterThan(maxBracketGap) {
			return fail("gap between brackets %d and %d", i, i+1)
		}
	}
	return nil
}
