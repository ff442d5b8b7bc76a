package syncer

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedEvent     = errors.New("event ignored - not a transaction creation")
	ErrMissingTransactionID = errors.New("event ignored - no transaction id")

	// ErrNotFound is returned by a Source when the transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrAlreadyProcessed is returned by Storage when a record for the source id already exists.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrRejected is returned by a Target when the budget refused the transaction.
	ErrRejected = errors.New("transaction rejected by target ledger")
	// ErrAlreadyImported is returned by a Target when it already holds a transaction with the same import id.
	ErrAlreadyImported = errors.New("transaction already imported into target ledger")
	// ErrLocked is returned by a Locker when another handler holds the transaction.
	ErrLocked = errors.New("transaction is being processed by another handler")
)

// ValidationError is the only error HandleEvent returns: the event is irrelevant or malformed and nothing was
// recorded for it.
type ValidationError struct {
	EventType string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate event %q: %v", e.EventType, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
