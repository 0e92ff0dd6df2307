package handler

import (
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Response views. Money is rounded to cents only here.
// ============================================================

const noDescription = "Sem descrição"

// money renders as a JSON number with two decimals.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

// number renders as an unquoted JSON number at full precision.
type number decimal.Decimal

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

type userView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func presentUser(u domain.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email}
}

type bracketView struct {
	Min       money  `json:"min"`
	Max       *money `json:"max"`
	Rate      number `json:"rate"`
	Deduction money  `json:"deduction"`
}

func presentBracket(b domain.TaxBracket) bracketView {
	v := bracketView{
		Min:       money(b.Min),
		Rate:      number(b.Rate),
		Deduction: money(b.Deduction),
	}
	if !b.Unbounded() {
		upper := money(b.Max.Decimal)
		v.Max = &upper
	}
	return v
}

// --- Tax report ---

type taxReportResponse struct {
	GeneratedAt string        `json:"generated_at"`
	Report      taxReportView `json:"report"`
}

type taxReportView struct {
	Year          int                  `json:"year"`
	User          userView             `json:"user"`
	Income        incomeView           `json:"income"`
	Deductions    deductionsView       `json:"deductions"`
	Calculation   calculationView      `json:"calculation"`
	Summary       domain.ReportSummary `json:"summary"`
	DefaultConfig bool                 `json:"default_config"`
}

type incomeView struct {
	Total        money `json:"total"`
	Transactions int   `json:"transactions"`
}

type deductionsView struct {
	Total   money           `json:"total"`
	Details []deductionView `json:"details"`
}

type deductionView struct {
	Class       domain.DeductionClass `json:"class"`
	Spent       money                 `json:"spent"`
	Deducted    money                 `json:"deducted"`
	Limit       money                 `json:"limit"`
	Utilization string                `json:"utilization"`
}

type calculationView struct {
	TaxableIncome money        `json:"taxable_income"`
	Bracket       *bracketView `json:"bracket"`
	TaxDue        money        `json:"tax_due"`
	EffectiveRate string       `json:"effective_rate"`
	Situation     string       `json:"situation"`
}

func presentTaxReport(r *domain.TaxReport, generatedAt time.Time) taxReportResponse {
	details := make([]deductionView, 0, len(r.Deductions))
	for _, d := range r.Deductions {
		details = append(details, deductionView{
			Class:       d.Class,
			Spent:       money(d.Spent),
			Deducted:    money(d.Deducted),
			Limit:       money(d.Limit),
			Utilization: d.Utilization,
		})
	}

	calc := calculationView{
		TaxableIncome: money(r.Calculation.TaxableIncome),
		TaxDue:        money(r.Calculation.TaxDue),
		EffectiveRate: r.Calculation.EffectiveRate,
		Situation:     r.Calculation.Situation,
	}
	if r.Calculation.Bracket != nil {
		b := presentBracket(*r.Calculation.Bracket)
		calc.Bracket = &b
	}

	return taxReportResponse{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Report: taxReportView{
			Year:          r.Year,
			User:          userView{ID: r.User.ID, Name: r.User.Name},
			Income:        incomeView{Total: money(r.TotalIncome), Transactions: r.IncomeTransactions},
			Deductions:    deductionsView{Total: money(r.TotalDeductions), Details: details},
			Calculation:   calc,
			Summary:       r.Summary,
			DefaultConfig: r.DefaultConfig,
		},
	}
}

// --- Tax configuration ---

type taxConfigResponse struct {
	GeneratedAt string        `json:"generated_at"`
	Config      taxConfigView `json:"config"`
}

type taxConfigView struct {
	Year            int                              `json:"year"`
	Brackets        []bracketView                    `json:"tax_brackets"`
	DeductionLimits map[domain.DeductionClass]number `json:"deduction_limits"`
	Mapping         domain.DeductionMapping          `json:"deduction_mapping"`
	ExemptAmount    money                            `json:"exempt_amount"`
	MinimumWage     money                            `json:"minimum_wage"`
	IsActive        bool                             `json:"is_active"`
	IsDefault       bool                             `json:"is_default"`
}

func presentTaxConfig(c *domain.TaxConfiguration, generatedAt time.Time) taxConfigResponse {
	brackets := make([]bracketView, 0, len(c.Brackets))
	for _, b := range c.Brackets {
		brackets = append(brackets, presentBracket(b))
	}
	limits := make(map[domain.DeductionClass]number, len(c.DeductionLimits))
	for class, limit := range c.DeductionLimits {
		limits[class] = number(limit)
	}

	return taxConfigResponse{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Config: taxConfigView{
			Year:            c.Year,
			Brackets:        brackets,
			DeductionLimits: limits,
			Mapping:         c.Mapping,
			ExemptAmount:    money(c.ExemptAmount),
			MinimumWage:     money(c.MinimumWage),
			IsActive:        c.IsActive,
			IsDefault:       c.IsDefault,
		},
	}
}

// --- Dashboard ---

type dashboardResponse struct {
	GeneratedAt string        `json:"generated_at"`
	Dashboard   dashboardView `json:"dashboard"`
}

type dashboardView struct {
	User               userView            `json:"user"`
	Summary            balanceView         `json:"summary"`
	Accounts           accountsView        `json:"accounts"`
	Categories         categoriesView      `json:"categories"`
	RecentTransactions []recentTransaction `json:"recent_transactions"`
}

type balanceView struct {
	Balance               money `json:"balance"`
	TotalIncome           money `json:"total_income"`
	TotalExpense          money `json:"total_expense"`
	TransactionCount      int   `json:"transaction_count"`
	TransactionsThisMonth int   `json:"transactions_this_month"`
}

type accountsView struct {
	Total int      `json:"total"`
	Types []string `json:"types"`
}

type categoriesView struct {
	Total   int `json:"total"`
	Expense int `json:"expense"`
	Income  int `json:"income"`
}

type recentTransaction struct {
	ID          int64                  `json:"id"`
	Type        domain.TransactionType `json:"type"`
	Amount      money                  `json:"amount"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
	AccountID   int64                  `json:"account_id"`
	CategoryID  int64                  `json:"category_id"`
}

func presentDashboard(d *domain.DashboardSummary, generatedAt time.Time) dashboardResponse {
	recent := make([]recentTransaction, 0, len(d.RecentTransactions))
	for _, tx := range d.RecentTransactions {
		desc := tx.Description
		if desc == "" {
			desc = noDescription
		}
		recent = append(recent, recentTransaction{
			ID:          tx.ID,
			Type:        tx.Type,
			Amount:      money(tx.Amount),
			Description: desc,
			Date:        tx.Date.Format(domain.DateLayout),
			AccountID:   tx.AccountID,
			CategoryID:  tx.CategoryID,
		})
	}

	types := d.AccountTypes
	if types == nil {
		types = []string{}
	}

	return dashboardResponse{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Dashboard: dashboardView{
			User: presentUser(d.User),
			Summary: balanceView{
				Balance:               money(d.Balance),
				TotalIncome:           money(d.TotalIncome),
				TotalExpense:          money(d.TotalExpense),
				TransactionCount:      d.TransactionCount,
				TransactionsThisMonth: d.TransactionsThisMonth,
			},
			Accounts:           accountsView{Total: d.AccountCount, Types: types},
			Categories:         categoriesView{Total: d.CategoryCount, Expense: d.ExpenseCategories, Income: d.IncomeCategories},
			RecentTransactions: recent,
		},
	}
}
