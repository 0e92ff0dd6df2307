package supabase

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Ledger reads: users, transactions, accounts, categories
// ============================================================

type userRow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type transactionRow struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description"`
	Date        string          `json:"date"`
	UserID      int64           `json:"user_id"`
	AccountID   int64           `json:"account_id"`
	CategoryID  int64           `json:"category_id"`
}

type accountRow struct {
	ID             int64               `json:"id"`
	Name           string              `json:"name"`
	Type           string              `json:"type"`
	InitialBalance decimal.NullDecimal `json:"initial_balance"`
	UserID         int64               `json:"user_id"`
}

type categoryRow struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
}

// FindUser fetches one user by id.
func (c *Client) FindUser(ctx context.Context, userID int64) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(userID, 10))
	q.Set("limit", "1")

	var rows []userRow
	if err := c.selectRows(ctx, "users", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: strconv.FormatInt(userID, 10)}
	}
	u := rows[0]
	return &domain.User{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

// ListTransactions lists a user's transactions newest first.
func (c *Client) ListTransactions(ctx context.Context, userID int64, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	var rows []transactionRow
	if err := c.selectRows(ctx, "transactions", transactionQuery(userID, filter), &rows); err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toDomain()
		if err != nil {
			return nil, &domain.ErrStorageUnavailable{Store: "supabase/transactions", Err: err}
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// transactionQuery translates a filter into PostgREST operators.
func transactionQuery(userID int64, filter domain.TransactionFilter) url.Values {
	q := url.Values{}
	q.Set("user_id", "eq."+strconv.FormatInt(userID, 10))
	if filter.Type != nil {
		q.Set("type", "eq."+string(*filter.Type))
	}
	if filter.Range != nil {
		q.Add("date", "gte."+filter.Range.Start.Format(domain.DateLayout))
		q.Add("date", "lte."+filter.Range.End.Format(domain.DateLayout))
	}
	q.Set("order", "date.desc,id.desc")
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	return q
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %d: %w", r.ID, err)
	}
	tx := domain.Transaction{
		ID:         r.ID,
		Type:       domain.TransactionType(r.Type),
		Amount:     r.Amount,
		Date:       date,
		UserID:     r.UserID,
		AccountID:  r.AccountID,
		CategoryID: r.CategoryID,
	}
	if !tx.Type.Valid() {
		return domain.Transaction{}, fmt.Errorf("transaction %d: unknown type %q", r.ID, r.Type)
	}
	if r.Description != nil {
		tx.Description = *r.Description
	}
	return tx, nil
}

// parseDate accepts a DATEONLY column or a full timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return domain.CalendarDate(t), nil
}

// ListAccounts lists a user's accounts.
func (c *Client) ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAccounts")
	defer span.End()

	q := url.Values{}
	q.Set("user_id", "eq."+strconv.FormatInt(userID, 10))
	q.Set("order", "id.asc")

	var rows []accountRow
	if err := c.selectRows(ctx, "accounts", q, &rows); err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, domain.Account{
			ID:             r.ID,
			Name:           r.Name,
			Type:           r.Type,
			InitialBalance: r.InitialBalance.Decimal,
			UserID:         r.UserID,
		})
	}
	return accounts, nil
}

// ListCategories lists a user's categories.
func (c *Client) ListCategories(ctx context.Context, userID int64) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()

	q := url.Values{}
	q.Set("user_id", "eq."+strconv.FormatInt(userID, 10))
	q.Set("order", "id.asc")

	var rows []categoryRow
	if err := c.selectRows(ctx, "categories", q, &rows); err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, domain.Category{
			ID:     r.ID,
			Name:   r.Name,
			Type:   domain.TransactionType(strings.ToLower(r.Type)),
			UserID: r.UserID,
		})
	}
	return categories, nil
}
