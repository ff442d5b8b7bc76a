package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"github.com/vgarvardt/gue/v5"
	"go.uber.org/zap"
)

// Syncer is the transaction synchronization engine: it turns transaction-created events from the bank into
// budget transactions, at most once per bank transaction. It keeps no mutable state of its own and is safe for
// concurrent use.
type Syncer struct {
	cfg        Config
	storage    Storage
	source     Source
	target     Target
	locker     Locker
	q          *gue.Client
	ledger     *Ledger
	mapper     *CategoryMapper
	classifier TransferClassifier
	builder    TransactionBuilder
	logger     *zap.Logger
}

type Storage interface {
	// HasProcessedTransaction checks whether a record exists for the source transaction id
	HasProcessedTransaction(ctx context.Context, sourceID string) (bool, error)
	// CreateProcessedTransaction inserts a record, returns ErrAlreadyProcessed if the id is already recorded
	CreateProcessedTransaction(ctx context.Context, rec ProcessedTransaction) error
	// ListProcessedTransactions returns the newest records, all statuses when status is empty
	ListProcessedTransactions(ctx context.Context, status ProcessStatus, limit uint64) ([]ProcessedTransaction, error)
	// GetPayeeCategory returns the active mapping for the payee or nil if there is none
	GetPayeeCategory(ctx context.Context, payee string) (*PayeeCategoryMapping, error)
	// UpsertPayeeCategory overwrites the payee's category and adds observations to its count
	UpsertPayeeCategory(ctx context.Context, payee, categoryID, categoryName string, observations int) error
	// DeactivatePayeeCategory hides the payee's mapping from lookups, reports whether an active one existed
	DeactivatePayeeCategory(ctx context.Context, payee string) (bool, error)
	// ListPayeeCategoryMappings returns every mapping ordered by payee
	ListPayeeCategoryMappings(ctx context.Context) ([]PayeeCategoryMapping, error)
	// RunInTransaction runs f against a storage bound to a single database transaction
	RunInTransaction(ctx context.Context, f func(ctx context.Context, tx Storage) error) error
}

// Source is the bank.
type Source interface {
	// GetTransaction returns ErrNotFound when the bank does not know the id
	GetTransaction(ctx context.Context, id string) (*SourceTransaction, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

// Target is the budget.
type Target interface {
	// CreateTransaction returns the budget's id for the new transaction, ErrRejected if it was refused
	CreateTransaction(ctx context.Context, tx TargetTransaction) (string, error)
	GetBudgetSnapshot(ctx context.Context) (*BudgetSnapshot, error)
}

// Locker serializes handlers of the same key across processes.
type Locker interface {
	// Lock returns ErrLocked if the key is held elsewhere
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// nolint:lll
type Config struct {
	AmountMultiplier int64    `env:"AMOUNT_MULTIPLIER, default=10"` // Source minor units to budget units, 10 turns cents into milliunits
	TransferMarkers  []string `env:"TRANSFER_MARKERS"`              // Description fragments marking own-account transfers, DefaultTransferMarkers when empty
	WorkerPoolSize   int      `env:"WORKER_POOL_SIZE, default=1"`   // How many queue workers to spawn
	ResyncOnStart    bool     `env:"RESYNC_ON_START, default=true"` // Enqueue a mapping resync when the service starts
	ResyncMaxRetries int32    `env:"RESYNC_MAX_RETRIES, default=5"` // How many times a failed resync job is retried before it's dropped
	TargetAccountID  string   // Budget account new transactions are created in, taken from the budget configuration
}

// New builds the engine. locker and q may be nil: without a locker concurrent duplicates are stopped by the
// ledger's unique constraint and the import id, without a queue resyncs only run on demand.
func New(
	s Storage,
	src Source,
	t Target,
	lk Locker,
	q *gue.Client,
	l *zap.Logger,
	cfg Config,
) *Syncer {
	return &Syncer{
		cfg:        cfg,
		storage:    s,
		source:     src,
		target:     t,
		locker:     lk,
		q:          q,
		ledger:     NewLedger(s, l),
		mapper:     NewCategoryMapper(s, l),
		classifier: NewTransferClassifier(cfg.TransferMarkers),
		builder:    NewTransactionBuilder(cfg.TargetAccountID, cfg.AmountMultiplier),
		logger:     l,
	}
}

type Outcome int

const (
	OutcomeProcessed Outcome = iota + 1
	OutcomeDuplicate
	OutcomeInProgress
	OutcomeFiltered
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeInProgress:
		return "in_progress"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Result describes how an event was handled. Every Result is a successful handling of the event from the
// sender's point of view.
type Result struct {
	TransactionID string
	Outcome       Outcome
	Message       string
}

// Status is the short tag reported to the event sender: processed, skipped or error.
func (r Result) Status() string {
	switch r.Outcome {
	case OutcomeProcessed:
		return "processed"
	case OutcomeFailed:
		return "error"
	}
	return "skipped"
}

// HandleEvent synchronizes the transaction an event refers to. It only returns an error, a *ValidationError,
// when the event is not a transaction creation or carries no transaction id; every other path ends in a recorded
// outcome described by the Result.
//
// An attempt runs to completion even when ctx is cancelled: a transaction accepted by the target is always
// recorded. Outbound calls are bounded by the client timeouts.
func (s *Syncer) HandleEvent(ctx context.Context, event Event) (Result, error) {
	ctx = context.WithoutCancel(ctx)

	if event.Type != EventTypeTransactionCreated {
		s.logger.Debug("ignoring non transaction event", zap.String("event_type", event.Type))
		return Result{}, &ValidationError{EventType: event.Type, Err: ErrUnsupportedEvent}
	}

	id := event.TransactionID
	if id == "" {
		s.logger.Warn("transaction event without transaction id")
		return Result{}, &ValidationError{EventType: event.Type, Err: ErrMissingTransactionID}
	}

	log := s.logger.With(zap.String("transaction_id", id))

	unlock, err := s.lock(ctx, id)
	if errors.Is(err, ErrLocked) {
		log.Info("transaction is being processed by another handler")
		return Result{
			TransactionID: id,
			Outcome:       OutcomeInProgress,
			Message:       fmt.Sprintf("Transaction %s is already being processed", id),
		}, nil
	}
	defer unlock()

	if s.ledger.HasProcessed(ctx, id) {
		log.Info("transaction already processed")
		return duplicateResult(id), nil
	}

	tx, err := s.source.GetTransaction(ctx, id)
	if err != nil {
		log.Error("fetch source transaction", zap.Error(err))

		detail := fmt.Sprintf("fetch source transaction: %v", err)
		return s.finish(ctx, ProcessedTransaction{
			SourceTransactionID: id,
			PayeeName:           "Unknown",
			Status:              StatusFailed,
			ErrorMessage:        &detail,
		}, Result{
			TransactionID: id,
			Outcome:       OutcomeFailed,
			Message:       fmt.Sprintf("Failed to fetch transaction %s from source", id),
		}), nil
	}

	return s.process(ctx, log, tx), nil
}

// SyncTransaction runs a single transaction through the engine as if its creation event had arrived.
func (s *Syncer) SyncTransaction(ctx context.Context, id string) (Result, error) {
	return s.HandleEvent(ctx, Event{Type: EventTypeTransactionCreated, TransactionID: id})
}

func (s *Syncer) process(ctx context.Context, log *zap.Logger, tx *SourceTransaction) Result {
	amount := s.builder.Amount(*tx)
	date := TransactionDate(*tx)
	rec := ProcessedTransaction{
		SourceTransactionID: tx.ID,
		PayeeName:           tx.Description,
		Amount:              amount,
		Date:                date,
	}

	log = log.With(zap.String("payee", tx.Description), zap.Int64("amount", amount))

	if class, reason := s.classifier.Classify(*tx); class == InternalTransfer {
		log.Info("transaction filtered out", zap.String("reason", reason))

		rec.Status = StatusSkipped
		rec.ErrorMessage = &reason
		return s.finish(ctx, rec, Result{
			TransactionID: tx.ID,
			Outcome:       OutcomeFiltered,
			Message:       "Transaction filtered: " + reason,
		})
	}

	var categoryID *string
	mapping := s.mapper.infer(ctx, tx.Description)
	if mapping != nil {
		categoryID = &mapping.CategoryID
	}

	req := s.builder.Build(*tx, categoryID)

	targetID, err := s.target.CreateTransaction(ctx, req)
	if errors.Is(err, ErrAlreadyImported) {
		log.Warn("target already holds the transaction", zap.Error(err))

		detail := "Already imported into target"
		rec.Status = StatusProcessed
		rec.ErrorMessage = &detail
		return s.finish(ctx, rec, Result{
			TransactionID: tx.ID,
			Outcome:       OutcomeProcessed,
			Message:       fmt.Sprintf("$%s paid to %s at %s (already imported)", tx.DisplayValue(), tx.Description, date),
		})
	}
	if err != nil {
		log.Error("create target transaction", zap.Error(err))

		detail := err.Error()
		rec.Status = StatusFailed
		rec.ErrorMessage = &detail
		return s.finish(ctx, rec, Result{
			TransactionID: tx.ID,
			Outcome:       OutcomeFailed,
			Message:       fmt.Sprintf("Failed to create target transaction for %s: %v", tx.Description, err),
		})
	}

	if mapping != nil {
		if err := s.mapper.Observe(ctx, tx.Description, mapping.CategoryID, mapping.CategoryName); err != nil {
			log.Error("observe payee category", zap.Error(err))
		}
	}

	log.Info("transaction created in target", zap.String("target_transaction_id", targetID))

	rec.Status = StatusProcessed
	rec.TargetTransactionID = &targetID
	return s.finish(ctx, rec, Result{
		TransactionID: tx.ID,
		Outcome:       OutcomeProcessed,
		Message:       fmt.Sprintf("$%s paid to %s at %s", tx.DisplayValue(), tx.Description, date),
	})
}

// finish records the attempt. Losing the record race to another handler turns the result into a duplicate.
func (s *Syncer) finish(ctx context.Context, rec ProcessedTransaction, res Result) Result {
	if err := s.ledger.Record(ctx, rec); errors.Is(err, ErrAlreadyProcessed) {
		return duplicateResult(rec.SourceTransactionID)
	}

	return res
}

func duplicateResult(id string) Result {
	return Result{
		TransactionID: id,
		Outcome:       OutcomeDuplicate,
		Message:       fmt.Sprintf("Transaction %s already processed", id),
	}
}

func (s *Syncer) lock(ctx context.Context, id string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	unlock, err := s.locker.Lock(ctx, lockKey(id))
	if errors.Is(err, ErrLocked) {
		return noop, err
	}
	if err != nil {
		s.logger.Warn("lock unavailable, continuing without it", zap.Error(err), zap.String("transaction_id", id))
		return noop, nil
	}

	return unlock, nil
}

func lockKey(id string) string {
	return "syncer:transaction:" + id
}

// Resync rebuilds payee mappings from the budget's full history.
func (s *Syncer) Resync(ctx context.Context) (ResyncReport, error) {
	var (
		snapshot *BudgetSnapshot
		accounts []Account
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		if snapshot, err = s.target.GetBudgetSnapshot(ctx); err != nil {
			return fmt.Errorf("get budget snapshot: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		var err error
		if accounts, err = s.source.ListAccounts(ctx); err != nil {
			// own account names only refine transfer detection
			s.logger.Warn("list source accounts failed, resyncing without them", zap.Error(err))
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		return ResyncReport{}, err
	}

	report, err := s.mapper.ResyncFromHistory(ctx, snapshot, accounts)
	if err != nil {
		return ResyncReport{}, fmt.Errorf("resync from history: %w", err)
	}

	return report, nil
}

func (s *Syncer) Mappings(ctx context.Context) ([]PayeeCategoryMapping, error) {
	return s.storage.ListPayeeCategoryMappings(ctx)
}

func (s *Syncer) Processed(ctx context.Context, status ProcessStatus, limit uint64) ([]ProcessedTransaction, error) {
	return s.ledger.Processed(ctx, status, limit)
}
