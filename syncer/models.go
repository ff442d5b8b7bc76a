package syncer

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventTypeTransactionCreated = "TRANSACTION_CREATED"

// Event is an inbound notification reduced to what the engine needs.
type Event struct {
	Type          string
	TransactionID string
}

// SourceTransaction is a bank-side money movement. Amount is in minor units, negative for debits.
type SourceTransaction struct {
	ID          string
	Description string
	RawText     string
	Message     string
	Amount      int64
	Value       decimal.Decimal
	Currency    string
	CreatedAt   time.Time
	SettledAt   *time.Time
	AccountID   string
}

// DisplayValue is the amount in major units as shown to people, e.g. "-12.50".
func (t SourceTransaction) DisplayValue() string {
	v := t.Value
	if v.IsZero() && t.Amount != 0 {
		v = decimal.New(t.Amount, -2)
	}
	return v.StringFixed(2)
}

// TargetTransaction is a request to create a transaction in the budget. Amount is in milliunits.
type TargetTransaction struct {
	AccountID  string
	PayeeName  *string
	CategoryID *string
	Memo       *string
	Amount     int64
	Date       string
	Cleared    string
	Approved   bool
	ImportID   string
}

type ProcessStatus string

const (
	StatusProcessed ProcessStatus = "processed"
	StatusSkipped   ProcessStatus = "skipped"
	StatusFailed    ProcessStatus = "failed"
)

// ProcessedTransaction is the audit and dedup record written once per source transaction id.
type ProcessedTransaction struct {
	SourceTransactionID string
	TargetTransactionID *string
	PayeeName           string
	Amount              int64
	Date                string
	Status              ProcessStatus
	ErrorMessage        *string
	ProcessedAt         time.Time
}

type PayeeCategoryMapping struct {
	PayeeName        string
	CategoryID       string
	CategoryName     string
	FirstSeen        time.Time
	LastUpdated      time.Time
	ObservationCount int
	IsActive         bool
}

// Account is a source bank account.
type Account struct {
	ID   string
	Name string
}

// BudgetSnapshot is the part of the target budget export used to rebuild payee mappings.
type BudgetSnapshot struct {
	Accounts        []BudgetAccount
	Payees          []Payee
	Categories      []Category
	CategoryGroups  []CategoryGroup
	Transactions    []HistoryTransaction
	Subtransactions []Subtransaction
}

type BudgetAccount struct {
	ID      string
	Name    string
	Deleted bool
}

type Payee struct {
	ID                string
	Name              string
	TransferAccountID string
	Deleted           bool
}

type Category struct {
	ID      string
	Name    string
	GroupID string
	Deleted bool
}

type CategoryGroup struct {
	ID      string
	Name    string
	Deleted bool
}

type HistoryTransaction struct {
	ID                string
	Date              string
	Amount            int64
	PayeeID           string
	CategoryID        string
	TransferAccountID string
	Deleted           bool
}

type Subtransaction struct {
	ID            string
	TransactionID string
	CategoryID    string
	Deleted       bool
}
