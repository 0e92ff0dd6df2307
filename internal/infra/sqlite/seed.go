package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/taxcalc"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SeedOptions controls the demo data set.
type SeedOptions struct {
	Year                int
	TransactionsPerUser int
	// RandSeed makes the generated ledger reproducible.
	RandSeed int64
}

// SeedResult counts the rows written.
type SeedResult struct {
	Users        int   `json:"users"`
	Accounts     int   `json:"accounts"`
	Categories   int   `json:"categories"`
	Transactions int   `json:"transactions"`
	TaxConfigID  int64 `json:"tax_config_id"`
}

var seedUsers = []struct{ name, email string }{
	{"Carlos Silva", "carlos@email.com"},
	{"Ana Santos", "ana@email.com"},
	{"Pedro Oliveira", "pedro@email.com"},
	{"Mariana Costa", "mariana@email.com"},
	{"Ricardo Lima", "ricardo@email.com"},
	{"Fernanda Souza", "fernanda@email.com"},
	{"Lucas Pereira", "lucas@email.com"},
	{"Juliana Alves", "juliana@email.com"},
	{"Roberto Santos", "roberto@email.com"},
	{"Camila Rodrigues", "camila@email.com"},
}

var seedAccounts = []struct {
	name, kind, balance string
}{
	{"Carteira", "wallet", "500.00"},
	{"Banco Itaú", "bank", "2500.00"},
	{"Cartão Nubank", "credit", "0.00"},
	{"Poupança", "savings", "1000.00"},
}

var seedCategories = []struct {
	name string
	kind domain.TransactionType
}{
	{"Alimentação", domain.TransactionExpense},
	{"Transporte", domain.TransactionExpense},
	{"Moradia", domain.TransactionExpense},
	{"Saúde", domain.TransactionExpense},
	{"Educação", domain.TransactionExpense},
	{"Lazer", domain.TransactionExpense},
	{"Salário", domain.TransactionIncome},
	{"Freelance", domain.TransactionIncome},
	{"Investimentos", domain.TransactionIncome},
	{"Bônus", domain.TransactionIncome},
}

var seedDescriptions = []string{
	"Supermercado", "Posto de gasolina", "Aluguel", "Conta de luz",
	"Plano de saúde", "Faculdade", "Cinema", "Restaurante",
	"Salário mensal", "Freelance projeto", "Dividendos", "Bônus anual",
}

// Seed wipes the ledger and writes the demo data set in one transaction:
// ten users with four accounts and ten categories each, random transactions
// within opts.Year, and an active tax configuration for that year whose
// health and education categories are linked by id.
func (s *Store) Seed(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	if opts.Year == 0 {
		opts.Year = 2024
	}
	if opts.TransactionsPerUser <= 0 {
		opts.TransactionsPerUser = 20
	}
	rng := rand.New(rand.NewSource(opts.RandSeed))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tax_categories", "tax_configs", "transactions", "categories", "accounts", "users", "sqlite_sequence"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	res := &SeedResult{}
	cfg := taxcalc.DefaultConfiguration(opts.Year)
	configID, err := insertTaxConfig(ctx, tx, cfg)
	if err != nil {
		return nil, err
	}
	res.TaxConfigID = configID

	for _, u := range seedUsers {
		userID, err := insertUser(ctx, tx, u.name, u.email)
		if err != nil {
			return nil, err
		}
		res.Users++

		accountIDs := make([]int64, 0, len(seedAccounts))
		for _, a := range seedAccounts {
			id, err := insertAccount(ctx, tx, userID, a.name, a.kind, decimal.RequireFromString(a.balance))
			if err != nil {
				return nil, err
			}
			accountIDs = append(accountIDs, id)
			res.Accounts++
		}

		byType := map[domain.TransactionType][]int64{}
		for _, c := range seedCategories {
			id, err := insertCategory(ctx, tx, userID, c.name, c.kind)
			if err != nil {
				return nil, err
			}
			byType[c.kind] = append(byType[c.kind], id)
			res.Categories++

			if class, ok := cfg.Mapping.ClassOf(domain.Category{Name: c.name}); ok {
				if err := insertTaxCategory(ctx, tx, configID, id, class); err != nil {
					return nil, err
				}
			}
		}

		for i := 0; i < opts.TransactionsPerUser; i++ {
			t := domain.Transaction{
				Description: seedDescriptions[rng.Intn(len(seedDescriptions))],
				Date:        domain.Date(opts.Year, time.Month(rng.Intn(12)+1), rng.Intn(28)+1),
				UserID:      userID,
				AccountID:   accountIDs[rng.Intn(len(accountIDs))],
			}
			if rng.Intn(2) == 0 {
				t.Type = domain.TransactionIncome
				t.Amount = decimal.New(100000+rng.Int63n(500000), -2) // 1000.00 - 6000.00
			} else {
				t.Type = domain.TransactionExpense
				t.Amount = decimal.New(1000+rng.Int63n(50000), -2) // 10.00 - 510.00
			}
			ids := byType[t.Type]
			t.CategoryID = ids[rng.Intn(len(ids))]

			if _, err := insertTransaction(ctx, tx, t); err != nil {
				return nil, err
			}
			res.Transactions++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}

	s.logger.Info("ledger seeded",
		zap.Int("users", res.Users),
		zap.Int("accounts", res.Accounts),
		zap.Int("categories", res.Categories),
		zap.Int("transactions", res.Transactions),
		zap.Int("tax_year", opts.Year),
	)
	return res, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, name, email string) (int64, error) {
	r, err := db.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, name, email)
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", email, err)
	}
	return r.LastInsertId()
}

func insertAccount(ctx context.Context, db execer, userID int64, name, kind string, balance decimal.Decimal) (int64, error) {
	r, err := db.ExecContext(ctx,
		`INSERT INTO accounts (name, type, initial_balance, user_id) VALUES (?, ?, ?, ?)`,
		name, kind, balance.String(), userID)
	if err != nil {
		return 0, fmt.Errorf("insert account %s: %w", name, err)
	}
	return r.LastInsertId()
}

func insertCategory(ctx context.Context, db execer, userID int64, name string, kind domain.TransactionType) (int64, error) {
	r, err := db.ExecContext(ctx,
		`INSERT INTO categories (name, type, user_id) VALUES (?, ?, ?)`,
		name, string(kind), userID)
	if err != nil {
		return 0, fmt.Errorf("insert category %s: %w", name, err)
	}
	return r.LastInsertId()
}

func insertTransaction(ctx context.Context, db execer, t domain.Transaction) (int64, error) {
	var description any
	if t.Description != "" {
		description = t.Description
	}
	r, err := db.ExecContext(ctx,
		`INSERT INTO transactions (type, amount, description, date, user_id, account_id, category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type), t.Amount.String(), description, t.Date.Format(domain.DateLayout),
		t.UserID, t.AccountID, t.CategoryID)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return r.LastInsertId()
}

// insertTaxConfig stores cfg. Its name mapping is not persisted; seeded
// configurations link categories through tax_categories instead.
func insertTaxConfig(ctx context.Context, db execer, cfg domain.TaxConfiguration) (int64, error) {
	brackets, err := json.Marshal(cfg.Brackets)
	if err != nil {
		return 0, fmt.Errorf("encode brackets: %w", err)
	}
	limits, err := json.Marshal(cfg.DeductionLimits)
	if err != nil {
		return 0, fmt.Errorf("encode limits: %w", err)
	}
	r, err := db.ExecContext(ctx,
		`INSERT INTO tax_configs (year, tax_brackets, deduction_limits, exempt_amount, minimum_wage, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cfg.Year, string(brackets), string(limits), cfg.ExemptAmount.String(), cfg.MinimumWage.String(), cfg.IsActive)
	if err != nil {
		return 0, fmt.Errorf("insert tax config %d: %w", cfg.Year, err)
	}
	return r.LastInsertId()
}

func insertTaxCategory(ctx context.Context, db execer, configID, categoryID int64, class domain.DeductionClass) error {
	kind := string(class)
	if class == domain.DeductionDependents {
		kind = "dependent"
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO tax_categories (tax_config_id, category_id, deduction_type) VALUES (?, ?, ?)`,
		configID, categoryID, kind)
	if err != nil {
		return fmt.Errorf("link category %d: %w", categoryID, err)
	}
	return nil
}
