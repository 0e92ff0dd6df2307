// Package sqlite is the embedded ledger backend: a modernc SQLite database
// with schema managed by golang-migrate. Money is stored as decimal TEXT.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlite")

// Store implements port.LedgerStore on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the database directory if needed, runs migrations and
// returns a ready store.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", dbPath))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(table string, err error) error {
	return &domain.ErrStorageUnavailable{Store: "sqlite/" + table, Err: err}
}

// FindUser fetches one user by id.
func (s *Store) FindUser(ctx context.Context, userID int64) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "user", ID: strconv.FormatInt(userID, 10)}
	}
	if err != nil {
		return nil, unavailable("users", err)
	}
	return &u, nil
}

// ListTransactions lists a user's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID int64, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if filter.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.Range != nil {
		where = append(where, "date >= ?", "date <= ?")
		args = append(args,
			filter.Range.Start.Format(domain.DateLayout),
			filter.Range.End.Format(domain.DateLayout),
		)
	}

	query := `SELECT id, type, amount, COALESCE(description, ''), date, user_id, account_id, category_id
		FROM transactions WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY date DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("transactions", err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		var (
			tx     domain.Transaction
			typ    string
			amount string
			date   string
		)
		if err := rows.Scan(&tx.ID, &typ, &amount, &tx.Description, &date, &tx.UserID, &tx.AccountID, &tx.CategoryID); err != nil {
			return nil, unavailable("transactions", err)
		}
		tx.Type = domain.TransactionType(typ)
		if !tx.Type.Valid() {
			return nil, unavailable("transactions", fmt.Errorf("transaction %d: unknown type %q", tx.ID, typ))
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, unavailable("transactions", fmt.Errorf("transaction %d amount: %w", tx.ID, err))
		}
		if tx.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, unavailable("transactions", fmt.Errorf("transaction %d date: %w", tx.ID, err))
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("transactions", err)
	}
	return txs, nil
}

// ListAccounts lists a user's accounts.
func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListAccounts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, initial_balance, user_id FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, unavailable("accounts", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var (
			a       domain.Account
			balance string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &balance, &a.UserID); err != nil {
			return nil, unavailable("accounts", err)
		}
		if a.InitialBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, unavailable("accounts", fmt.Errorf("account %d balance: %w", a.ID, err))
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("accounts", err)
	}
	return accounts, nil
}

// ListCategories lists a user's categories.
func (s *Store) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListCategories")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, user_id FROM categories WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, unavailable("categories", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var (
			c   domain.Category
			typ string
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.UserID); err != nil {
			return nil, unavailable("categories", err)
		}
		c.Type = domain.TransactionType(typ)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("categories", err)
	}
	return categories, nil
}

// FindTaxConfiguration returns the configuration stored for year, or nil.
func (s *Store) FindTaxConfiguration(ctx context.Context, year int) (*domain.TaxConfiguration, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindTaxConfiguration")
	defer span.End()
	span.SetAttributes(attribute.Int("tax.year", year))

	return s.findTaxConfig(ctx, `WHERE year = ? ORDER BY id DESC LIMIT 1`, year)
}

// FindActiveTaxConfiguration returns the most recent active configuration, or nil.
func (s *Store) FindActiveTaxConfiguration(ctx context.Context) (*domain.TaxConfiguration, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindActiveTaxConfiguration")
	defer span.End()

	return s.findTaxConfig(ctx, `WHERE is_active = 1 ORDER BY year DESC, id DESC LIMIT 1`)
}

func (s *Store) findTaxConfig(ctx context.Context, clause string, args ...any) (*domain.TaxConfiguration, error) {
	var (
		id                 int64
		cfg                domain.TaxConfiguration
		brackets, limits   string
		names, minimumWage sql.NullString
		exemptAmount       string
		active             bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, year, tax_brackets, deduction_limits, category_names, exempt_amount, minimum_wage, is_active
		FROM tax_configs `+clause, args...,
	).Scan(&id, &cfg.Year, &brackets, &limits, &names, &exemptAmount, &minimumWage, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("tax_configs", err)
	}
	cfg.IsActive = active

	if err := json.Unmarshal([]byte(brackets), &cfg.Brackets); err != nil {
		return nil, corruptConfig(id, cfg.Year, "brackets", err)
	}
	var rawLimits map[string]decimal.Decimal
	if err := json.Unmarshal([]byte(limits), &rawLimits); err != nil {
		return nil, corruptConfig(id, cfg.Year, "limits", err)
	}
	cfg.DeductionLimits = domain.DeductionLimitsFrom(rawLimits)

	var byName map[string]string
	if names.Valid && names.String != "" {
		if err := json.Unmarshal([]byte(names.String), &byName); err != nil {
			return nil, corruptConfig(id, cfg.Year, "category names", err)
		}
	}
	if cfg.ExemptAmount, err = decimal.NewFromString(exemptAmount); err != nil {
		return nil, corruptConfig(id, cfg.Year, "exempt amount", err)
	}
	if minimumWage.Valid && minimumWage.String != "" {
		if cfg.MinimumWage, err = decimal.NewFromString(minimumWage.String); err != nil {
			return nil, corruptConfig(id, cfg.Year, "minimum wage", err)
		}
	}

	links, err := s.taxCategoryLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg.Mapping = domain.DeductionMappingFrom(links, byName)
	return &cfg, nil
}

// corruptConfig reports a stored row that decodes to no usable configuration.
func corruptConfig(id int64, year int, column string, err error) error {
	return &domain.ErrConfigurationIntegrity{
		Year:   year,
		Reason: fmt.Sprintf("tax_configs %d %s: %v", id, column, err),
	}
}

func (s *Store) taxCategoryLinks(ctx context.Context, taxConfigID int64) ([]domain.TaxCategoryLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category_id, deduction_type FROM tax_categories WHERE tax_config_id = ? ORDER BY id`, taxConfigID)
	if err != nil {
		return nil, unavailable("tax_categories", err)
	}
	defer rows.Close()

	var links []domain.TaxCategoryLink
	for rows.Next() {
		var l domain.TaxCategoryLink
		if err := rows.Scan(&l.CategoryID, &l.DeductionType); err != nil {
			return nil, unavailable("tax_categories", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("tax_categories", err)
	}
	return links, nil
}
