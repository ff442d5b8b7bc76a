package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/eqtlab/ynab-syncer/pkg/db"
	"github.com/eqtlab/ynab-syncer/syncer"
)

// CreateProcessedTransaction relies on the unique source_transaction_id: a conflicting insert returns no row.
func (s *Storage) CreateProcessedTransaction(ctx context.Context, rec syncer.ProcessedTransaction) error {
	query := sq.
		Insert("processed_transactions").
		Columns(
			"source_transaction_id",
			"target_transaction_id",
			"payee_name",
			"amount",
			"transaction_date",
			"status",
			"error_message",
		).
		Values(
			rec.SourceTransactionID,
			rec.TargetTransactionID,
			rec.PayeeName,
			rec.Amount,
			rec.Date,
			string(rec.Status),
			rec.ErrorMessage,
		).
		Suffix("on conflict (source_transaction_id) do nothing returning id")

	var id int64
	err := s.db.Insert(ctx, query, db.ScanOnce(&id))
	if errors.Is(err, pgx.ErrNoRows) {
		return syncer.ErrAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("insert processed transaction: %w", err)
	}

	return nil
}

func (s *Storage) HasProcessedTransaction(ctx context.Context, sourceID string) (bool, error) {
	query := `
		select id from processed_transactions
		where source_transaction_id = $1;
	`

	var id int64
	err := s.db.RawQuery(ctx, db.ScanOnce(&id), query, sourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db select: %w", err)
	}

	return true, nil
}

func (s *Storage) ListProcessedTransactions(
	ctx context.Context,
	status syncer.ProcessStatus,
	limit uint64,
) ([]syncer.ProcessedTransaction, error) {
	query := sq.
		Select(
			"source_transaction_id",
			"target_transaction_id",
			"payee_name",
			"amount",
			"transaction_date",
			"status",
			"error_message",
			"processed_at",
		).
		From("processed_transactions").
		OrderBy("processed_at desc", "id desc").
		Limit(limit)

	if status != "" {
		query = query.Where(sq.Eq{"status": string(status)})
	}

	var out []syncer.ProcessedTransaction
	err := s.db.Select(ctx, query, db.ScanAll(&out, func(rec *syncer.ProcessedTransaction) db.ScanArgs {
		return db.ScanArgs{
			&rec.SourceTransactionID,
			&rec.TargetTransactionID,
			&rec.PayeeName,
			&rec.Amount,
			&rec.Date,
			&rec.Status,
			&rec.ErrorMessage,
			&rec.ProcessedAt,
		}
	}))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db select: %w", err)
	}

	return out, nil
}
