package up

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eqtlab/ynab-syncer/syncer"
)

// Source exposes the client to the syncer.
type Source struct {
	client *Client
}

var _ syncer.Source = (*Source)(nil)

func NewSource(c *Client) *Source {
	return &Source{client: c}
}

func (s *Source) GetTransaction(ctx context.Context, id string) (*syncer.SourceTransaction, error) {
	tx, err := s.client.GetTransaction(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", syncer.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return toSourceTransaction(tx)
}

func (s *Source) ListAccounts(ctx context.Context) ([]syncer.Account, error) {
	accounts, err := s.client.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]syncer.Account, 0, len(accounts))
	for _, a := range accounts {
		res = append(res, syncer.Account{ID: a.ID, Name: a.Attributes.DisplayName})
	}

	return res, nil
}

func toSourceTransaction(tx *Transaction) (*syncer.SourceTransaction, error) {
	attrs := tx.Attributes

	value := decimal.New(attrs.Amount.ValueInBaseUnits, -2)
	if attrs.Amount.Value != "" {
		var err error
		if value, err = decimal.NewFromString(attrs.Amount.Value); err != nil {
			return nil, fmt.Errorf("parse amount %q of %s: %w", attrs.Amount.Value, tx.ID, err)
		}
	}

	res := &syncer.SourceTransaction{
		ID:          tx.ID,
		Description: attrs.Description,
		Amount:      attrs.Amount.ValueInBaseUnits,
		Value:       value,
		Currency:    attrs.Amount.CurrencyCode,
		CreatedAt:   attrs.CreatedAt,
		SettledAt:   attrs.SettledAt,
		AccountID:   tx.AccountID(),
	}
	if attrs.RawText != nil {
		res.RawText = *attrs.RawText
	}
	if attrs.Message != nil {
		res.Message = *attrs.Message
	}

	return res, nil
}
