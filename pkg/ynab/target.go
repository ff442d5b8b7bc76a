package ynab

import (
	"context"
	"errors"
	"fmt"

	"github.com/eqtlab/ynab-syncer/syncer"
)

// Target exposes one budget of the client to the syncer.
type Target struct {
	client   *Client
	budgetID string
}

var _ syncer.Target = (*Target)(nil)

func NewTarget(c *Client, budgetID string) *Target {
	return &Target{
		client:   c,
		budgetID: budgetID,
	}
}

func (t *Target) CreateTransaction(ctx context.Context, tx syncer.TargetTransaction) (string, error) {
	created, err := t.client.CreateTransaction(ctx, t.budgetID, SaveTransaction{
		AccountID:  tx.AccountID,
		Date:       tx.Date,
		Amount:     tx.Amount,
		PayeeName:  tx.PayeeName,
		CategoryID: tx.CategoryID,
		Memo:       tx.Memo,
		Cleared:    tx.Cleared,
		Approved:   tx.Approved,
		ImportID:   tx.ImportID,
	})

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return "", fmt.Errorf("%w: %s", syncer.ErrRejected, apiErr.Detail)
	case errors.Is(err, ErrDuplicateImport):
		return "", fmt.Errorf("%w: %v", syncer.ErrAlreadyImported, err)
	case err != nil:
		return "", err
	}

	return created.ID, nil
}

func (t *Target) GetBudgetSnapshot(ctx context.Context) (*syncer.BudgetSnapshot, error) {
	budget, err := t.client.GetBudget(ctx, t.budgetID)
	if err != nil {
		return nil, err
	}

	return toSnapshot(budget), nil
}

func toSnapshot(b *Budget) *syncer.BudgetSnapshot {
	res := &syncer.BudgetSnapshot{
		Accounts:        make([]syncer.BudgetAccount, 0, len(b.Accounts)),
		Payees:          make([]syncer.Payee, 0, len(b.Payees)),
		Categories:      make([]syncer.Category, 0, len(b.Categories)),
		CategoryGroups:  make([]syncer.CategoryGroup, 0, len(b.CategoryGroups)),
		Transactions:    make([]syncer.HistoryTransaction, 0, len(b.Transactions)),
		Subtransactions: make([]syncer.Subtransaction, 0, len(b.Subtransactions)),
	}

	for _, a := range b.Accounts {
		res.Accounts = append(res.Accounts, syncer.BudgetAccount{ID: a.ID, Name: a.Name, Deleted: a.Deleted})
	}
	for _, p := range b.Payees {
		res.Payees = append(res.Payees, syncer.Payee{
			ID:                p.ID,
			Name:              p.Name,
			TransferAccountID: deref(p.TransferAccountID),
			Deleted:           p.Deleted,
		})
	}
	for _, c := range b.Categories {
		res.Categories = append(res.Categories, syncer.Category{
			ID:      c.ID,
			Name:    c.Name,
			GroupID: c.CategoryGroupID,
			Deleted: c.Deleted,
		})
	}
	for _, g := range b.CategoryGroups {
		res.CategoryGroups = append(res.CategoryGroups, syncer.CategoryGroup{ID: g.ID, Name: g.Name, Deleted: g.Deleted})
	}
	for _, tx := range b.Transactions {
		res.Transactions = append(res.Transactions, syncer.HistoryTransaction{
			ID:                tx.ID,
			Date:              tx.Date,
			Amount:            tx.Amount,
			PayeeID:           deref(tx.PayeeID),
			CategoryID:        deref(tx.CategoryID),
			TransferAccountID: deref(tx.TransferAccountID),
			Deleted:           tx.Deleted,
		})
	}
	for _, st := range b.Subtransactions {
		res.Subtransactions = append(res.Subtransactions, syncer.Subtransaction{
			ID:            st.ID,
			TransactionID: st.TransactionID,
			CategoryID:    deref(st.CategoryID),
			Deleted:       st.Deleted,
		})
	}

	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
