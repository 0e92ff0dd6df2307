package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/observability"
	"github.com/boddenberg/irpf-engine/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TransactionAggregator reads a user's transactions and guarantees the
// filter contract regardless of how faithfully the store applied it.
type TransactionAggregator struct {
	store   port.TransactionLister
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransactionAggregator creates the aggregator.
func NewTransactionAggregator(store port.TransactionLister, metrics *observability.Metrics, logger *zap.Logger) *TransactionAggregator {
	return &TransactionAggregator{store: store, metrics: metrics, logger: logger}
}

// TransactionsFor returns the user's transactions matching filter, newest
// first (ties broken by id descending). No match yields an empty slice.
func (a *TransactionAggregator) TransactionsFor(ctx context.Context, userID int64, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionAggregator.TransactionsFor")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	rows, err := a.store.ListTransactions(ctx, userID, filter)
	if err != nil {
		a.metrics.IncrStoreError("transactions")
		a.logger.Error("failed to list transactions",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("transactions of user %d: %w", userID, err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, tx := range rows {
		if tx.UserID != 0 && tx.UserID != userID {
			continue
		}
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}

	slices.SortStableFunc(out, newestFirst)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	span.SetAttributes(attribute.Int("transactions.count", len(out)))
	return out, nil
}

func newestFirst(a, b domain.Transaction) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}
