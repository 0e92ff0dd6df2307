// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete persistence adapters (SQLite, Supabase).
package port

import (
	"context"

	"github.com/boddenberg/irpf-engine/internal/domain"
)

// UserFinder resolves a ledger owner. A missing user is *domain.ErrNotFound.
type UserFinder interface {
	FindUser(ctx context.Context, userID int64) (*domain.User, error)
}

// TransactionLister lists a user's transactions, ordered by date descending.
// No match is an empty slice, not an error.
type TransactionLister interface {
	ListTransactions(ctx context.Context, userID int64, filter domain.TransactionFilter) ([]domain.Transaction, error)
}

// AccountLister lists a user's accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error)
}

// CategoryLister lists a user's categories.
type CategoryLister interface {
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
}

// TaxConfigFinder reads administered tax configurations.
// An absent configuration is (nil, nil); callers fall back to the default.
type TaxConfigFinder interface {
	FindTaxConfiguration(ctx context.Context, year int) (*domain.TaxConfiguration, error)
	FindActiveTaxConfiguration(ctx context.Context) (*domain.TaxConfiguration, error)
}

// LedgerStore is the full read-only data-access contract consumed by the engine.
// Implemented by the SQLite and Supabase adapters.
type LedgerStore interface {
	UserFinder
	TransactionLister
	AccountLister
	CategoryLister
	TaxConfigFinder
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
