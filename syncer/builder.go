package syncer

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	importIDMaxLen = 36
	importIDPrefix = "up_"

	dateLayout = "2006-01-02"

	clearedSettled = "cleared"
	clearedPending = "uncleared"
)

// TransactionBuilder turns a source transaction into a budget transaction request. It holds no state beyond its
// configuration.
type TransactionBuilder struct {
	accountID  string
	multiplier int64
}

// NewTransactionBuilder scales source minor units by multiplier into the budget's units, e.g. 10 for cents into
// milliunits.
func NewTransactionBuilder(accountID string, multiplier int64) TransactionBuilder {
	return TransactionBuilder{
		accountID:  accountID,
		multiplier: multiplier,
	}
}

func (b TransactionBuilder) Build(tx SourceTransaction, categoryID *string) TargetTransaction {
	payee := tx.Description

	memo := tx.RawText
	if memo == "" {
		memo = tx.Description
	}

	cleared := clearedPending
	if tx.SettledAt != nil {
		cleared = clearedSettled
	}

	return TargetTransaction{
		AccountID:  b.accountID,
		PayeeName:  &payee,
		CategoryID: categoryID,
		Memo:       &memo,
		Amount:     b.Amount(tx),
		Date:       TransactionDate(tx),
		Cleared:    cleared,
		Approved:   true,
		ImportID:   ImportID(tx.ID),
	}
}

func (b TransactionBuilder) Amount(tx SourceTransaction) int64 {
	return tx.Amount * b.multiplier
}

// TransactionDate prefers the settlement time and falls back to creation for pending transactions. The date is
// taken in the timestamp's own offset, which is the bank's local time.
func TransactionDate(tx SourceTransaction) string {
	at := tx.CreatedAt
	if tx.SettledAt != nil {
		at = *tx.SettledAt
	}

	return at.Format(dateLayout)
}

// ImportID derives the budget's duplicate-suppression token from a source id. The result is deterministic and
// never longer than 36 characters.
func ImportID(sourceID string) string {
	if len(sourceID) == importIDMaxLen {
		return sourceID
	}

	if prefixed := importIDPrefix + sourceID; len(prefixed) <= importIDMaxLen {
		return prefixed
	}

	sum := sha256.Sum256([]byte(sourceID))
	return hex.EncodeToString(sum[:])[:importIDMaxLen]
}
