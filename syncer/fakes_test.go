package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memStorage struct {
	mu        sync.Mutex
	processed map[string]ProcessedTransaction
	mappings  map[string]PayeeCategoryMapping

	hasErr    error
	createErr error
	getErr    error
	upsertErr error
	// upsertFailOn fails the upsert of this payee only
	upsertFailOn string
	// honourCancel fails ledger calls on a cancelled context, like a real driver
	honourCancel bool
}

func newMemStorage() *memStorage {
	return &memStorage{
		processed: make(map[string]ProcessedTransaction),
		mappings:  make(map[string]PayeeCategoryMapping),
	}
}

func (s *memStorage) HasProcessedTransaction(ctx context.Context, sourceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.honourCancel && ctx.Err() != nil {
		return false, ctx.Err()
	}
	if s.hasErr != nil {
		return false, s.hasErr
	}
	_, ok := s.processed[sourceID]
	return ok, nil
}

func (s *memStorage) CreateProcessedTransaction(ctx context.Context, rec ProcessedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.honourCancel && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.processed[rec.SourceTransactionID]; ok {
		return ErrAlreadyProcessed
	}
	rec.ProcessedAt = time.Now()
	s.processed[rec.SourceTransactionID] = rec
	return nil
}

func (s *memStorage) ListProcessedTransactions(
	_ context.Context,
	status ProcessStatus,
	limit uint64,
) ([]ProcessedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []ProcessedTransaction
	for _, rec := range s.processed {
		if status == "" || rec.Status == status {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SourceTransactionID < res[j].SourceTransactionID })
	if uint64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *memStorage) GetPayeeCategory(_ context.Context, payee string) (*PayeeCategoryMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	m, ok := s.mappings[payee]
	if !ok || !m.IsActive {
		return nil, nil
	}
	return &m, nil
}

func (s *memStorage) UpsertPayeeCategory(
	_ context.Context,
	payee, categoryID, categoryName string,
	observations int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.upsertErr != nil {
		return s.upsertErr
	}
	if s.upsertFailOn == payee {
		return errors.New("upsert failed")
	}

	now := time.Now()
	m, ok := s.mappings[payee]
	if !ok {
		m = PayeeCategoryMapping{PayeeName: payee, FirstSeen: now}
	}
	m.CategoryID = categoryID
	m.CategoryName = categoryName
	m.ObservationCount += observations
	m.LastUpdated = now
	m.IsActive = true
	s.mappings[payee] = m
	return nil
}

func (s *memStorage) DeactivatePayeeCategory(_ context.Context, payee string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mappings[payee]
	if !ok || !m.IsActive {
		return false, nil
	}
	m.IsActive = false
	s.mappings[payee] = m
	return true, nil
}

func (s *memStorage) ListPayeeCategoryMappings(context.Context) ([]PayeeCategoryMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]PayeeCategoryMapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PayeeName < res[j].PayeeName })
	return res, nil
}

// RunInTransaction works on a copy that replaces the state only when f succeeds.
func (s *memStorage) RunInTransaction(ctx context.Context, f func(ctx context.Context, tx Storage) error) error {
	s.mu.Lock()
	tx := newMemStorage()
	for k, v := range s.processed {
		tx.processed[k] = v
	}
	for k, v := range s.mappings {
		tx.mappings[k] = v
	}
	tx.upsertErr = s.upsertErr
	tx.upsertFailOn = s.upsertFailOn
	s.mu.Unlock()

	if err := f(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.processed = tx.processed
	s.mappings = tx.mappings
	s.mu.Unlock()
	return nil
}

func (s *memStorage) record(id string) (ProcessedTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.processed[id]
	return rec, ok
}

func (s *memStorage) mapping(payee string) (PayeeCategoryMapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[payee]
	return m, ok
}

type fakeSource struct {
	mu          sync.Mutex
	txs         map[string]*SourceTransaction
	err         error
	accounts    []Account
	accountsErr error
	calls       int
}

func (s *fakeSource) GetTransaction(_ context.Context, id string) (*SourceTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	tx, ok := s.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *fakeSource) ListAccounts(context.Context) ([]Account, error) {
	return s.accounts, s.accountsErr
}

type fakeTarget struct {
	mu          sync.Mutex
	created     []TargetTransaction
	err         error
	snapshot    *BudgetSnapshot
	snapshotErr error
	// afterCreate runs once the transaction is accepted
	afterCreate func()
}

func (t *fakeTarget) CreateTransaction(_ context.Context, tx TargetTransaction) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return "", t.err
	}
	t.created = append(t.created, tx)
	if t.afterCreate != nil {
		t.afterCreate()
	}
	return "Y" + string(rune('0'+len(t.created))), nil
}

func (t *fakeTarget) GetBudgetSnapshot(context.Context) (*BudgetSnapshot, error) {
	if t.snapshotErr != nil {
		return nil, t.snapshotErr
	}
	return t.snapshot, nil
}

func (t *fakeTarget) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.created)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, ErrLocked
	}
	l.held[key] = true

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}
