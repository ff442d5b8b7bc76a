package syncer

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Ledger remembers every source transaction the engine has finished with. It is an audit and dedup aid, so
// its own storage failures never stop a synchronization attempt.
type Ledger struct {
	storage Storage
	logger  *zap.Logger
}

func NewLedger(s Storage, l *zap.Logger) *Ledger {
	return &Ledger{
		storage: s,
		logger:  l,
	}
}

// HasProcessed reports false when storage is unreachable: an extra submission is still caught by the import
// id, a wrong "processed" would drop a real transaction.
func (l *Ledger) HasProcessed(ctx context.Context, sourceID string) bool {
	ok, err := l.storage.HasProcessedTransaction(ctx, sourceID)
	if err != nil {
		l.logger.Error(
			"ledger: check processed transaction failed, assuming not processed",
			zap.Error(err),
			zap.String("transaction_id", sourceID),
		)
		return false
	}

	return ok
}

// Record returns ErrAlreadyProcessed when another attempt recorded the same id first. Other failures are
// logged and reported as nil.
func (l *Ledger) Record(ctx context.Context, rec ProcessedTransaction) error {
	err := l.storage.CreateProcessedTransaction(ctx, rec)
	if errors.Is(err, ErrAlreadyProcessed) {
		l.logger.Info(
			"ledger: transaction was recorded by another handler",
			zap.String("transaction_id", rec.SourceTransactionID),
			zap.String("status", string(rec.Status)),
		)
		return ErrAlreadyProcessed
	}
	if err != nil {
		l.logger.Error(
			"ledger: failed to record processed transaction",
			zap.Error(err),
			zap.String("transaction_id", rec.SourceTransactionID),
			zap.String("status", string(rec.Status)),
		)
		return nil
	}

	l.logger.Info(
		"ledger: recorded processed transaction",
		zap.String("transaction_id", rec.SourceTransactionID),
		zap.String("payee", rec.PayeeName),
		zap.String("status", string(rec.Status)),
	)

	return nil
}

func (l *Ledger) Processed(ctx context.Context, status ProcessStatus, limit uint64) ([]ProcessedTransaction, error) {
	return l.storage.ListProcessedTransactions(ctx, status, limit)
}
