package domain

import "github.com/shopspring/decimal"

// ============================================================
// Tax report (derived per request, never persisted)
// ============================================================

const (
	SituationTaxDue = "IMPOSTO A PAGAR"
	SituationExempt = "ISENTO"
)

// DeductionDetail is the per-class outcome of the deduction resolver.
type DeductionDetail struct {
	Class          DeductionClass  `json:"class"`
	Spent          decimal.Decimal `json:"spent"`
	Deducted       decimal.Decimal `json:"deducted"`
	Limit          decimal.Decimal `json:"limit"`
	UtilizationPct decimal.Decimal `json:"utilization_pct"`
	Utilization    string          `json:"utilization"`
}

// TaxCalculation is the bracket resolver's outcome plus derived rates.
type TaxCalculation struct {
	TaxableIncome    decimal.Decimal `json:"taxable_income"`
	Bracket          *TaxBracket     `json:"bracket"`
	TaxDue           decimal.Decimal `json:"tax_due"`
	EffectiveRatePct decimal.Decimal `json:"effective_rate_pct"`
	EffectiveRate    string          `json:"effective_rate"`
	Situation        string          `json:"situation"`
}

// ReportSummary carries the advisory text shown to the user.
type ReportSummary struct {
	Message        string `json:"message"`
	Deadline       string `json:"deadline"`
	Recommendation string `json:"recommendation"`
}

// TaxReport is the complete annual income-tax computation for one user.
type TaxReport struct {
	Year               int               `json:"year"`
	User               User              `json:"user"`
	TotalIncome        decimal.Decimal   `json:"total_income"`
	IncomeTransactions int               `json:"income_transactions"`
	TotalDeductions    decimal.Decimal   `json:"total_deductions"`
	Deductions         []DeductionDetail `json:"deductions"`
	Calculation        TaxCalculation    `json:"calculation"`
	Summary            ReportSummary     `json:"summary"`
	DefaultConfig      bool              `json:"default_config"`
}

// ============================================================
// Dashboard (derived per request, never persisted)
// ============================================================

// DashboardSummary is the aggregated home-screen view of a user's ledger.
type DashboardSummary struct {
	User                  User            `json:"user"`
	Balance               decimal.Decimal `json:"balance"`
	TotalIncome           decimal.Decimal `json:"total_income"`
	TotalExpense          decimal.Decimal `json:"total_expense"`
	TransactionCount      int             `json:"transaction_count"`
	TransactionsThisMonth int             `json:"transactions_this_month"`
	AccountCount          int             `json:"account_count"`
	AccountTypes          []string        `json:"account_types"`
	CategoryCount         int             `json:"category_count"`
	ExpenseCategories     int             `json:"expense_categories"`
	IncomeCategories      int             `json:"income_categories"`
	RecentTransactions    []Transaction   `json:"recent_transactions"`
}
