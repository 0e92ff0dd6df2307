package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Ledger records (owned by the external CRUD layer, read-only here)
// ============================================================

// TransactionType partitions every aggregation.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// User is the owner of a ledger.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Account is a wallet, bank, savings, credit or investment account.
type Account struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	UserID         int64           `json:"user_id"`
}

// Category groups transactions of one type for one user.
type Category struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Type   TransactionType `json:"type"`
	UserID int64           `json:"user_id"`
}

// Transaction is an immutable ledger entry. Amount is never negative;
// Type decides whether it counts as income or expense.
type Transaction struct {
	ID          int64           `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	UserID      int64           `json:"user_id"`
	AccountID   int64           `json:"account_id"`
	CategoryID  int64           `json:"category_id"`
}

// ============================================================
// Filters
// ============================================================

// DateLayout is the calendar-date wire format used by stores and responses.
const DateLayout = "2006-01-02"

// Date truncates t to its calendar date in UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CalendarDate drops the time-of-day component of t, keeping its calendar day.
func CalendarDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DateRange is an inclusive [Start, End] range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// YearRange returns [year-01-01, year-12-31].
func YearRange(year int) DateRange {
	return DateRange{
		Start: Date(year, time.January, 1),
		End:   Date(year, time.December, 31),
	}
}

// Contains reports whether the calendar date of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := CalendarDate(t)
	return !d.Before(CalendarDate(r.Start)) && !d.After(CalendarDate(r.End))
}

// TransactionFilter narrows a transaction listing. Results are always
// ordered by date descending, then id descending. Limit 0 means unbounded.
type TransactionFilter struct {
	Type  *TransactionType
	Range *DateRange
	Limit int
}

// Matches reports whether tx satisfies the type and range constraints.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.Range != nil && !f.Range.Contains(tx.Date) {
		return false
	}
	return true
}

// OfType is a convenience constructor for a type-only filter.
func OfType(t TransactionType) *TransactionType {
	return &t
}
