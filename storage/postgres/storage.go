package postgres

import (
	"context"

	"github.com/eqtlab/ynab-syncer/pkg/db"
	"github.com/eqtlab/ynab-syncer/syncer"
)

// Storage implements syncer.Storage interface via PostgreSQL
type Storage struct {
	db *db.DB
}

var _ syncer.Storage = (*Storage)(nil)

func New(db *db.DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) RunInTransaction(ctx context.Context, f func(ctx context.Context, tx syncer.Storage) error) error {
	return s.db.RunInTransaction(ctx, func(ctx context.Context, txDB *db.DB) error {
		return f(ctx, New(txDB))
	})
}
