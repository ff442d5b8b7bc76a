package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/eqtlab/ynab-syncer/pkg/db"
	"github.com/eqtlab/ynab-syncer/syncer"
)

var mappingColumns = []string{
	"payee_name",
	"category_id",
	"category_name",
	"first_seen",
	"last_updated",
	"observation_count",
	"is_active",
}

func mappingScanArgs(m *syncer.PayeeCategoryMapping) db.ScanArgs {
	return db.ScanArgs{
		&m.PayeeName,
		&m.CategoryID,
		&m.CategoryName,
		&m.FirstSeen,
		&m.LastUpdated,
		&m.ObservationCount,
		&m.IsActive,
	}
}

func (s *Storage) GetPayeeCategory(ctx context.Context, payee string) (*syncer.PayeeCategoryMapping, error) {
	query := sq.
		Select(mappingColumns...).
		From("payee_category_mappings").
		Where(sq.Eq{"payee_name": payee, "is_active": true})

	mapping := &syncer.PayeeCategoryMapping{}
	err := s.db.Select(ctx, query, db.ScanOnce(mappingScanArgs(mapping)...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db select: %w", err)
	}

	return mapping, nil
}

// UpsertPayeeCategory is a single statement so concurrent observers never lose a count increment.
func (s *Storage) UpsertPayeeCategory(
	ctx context.Context,
	payee, categoryID, categoryName string,
	observations int,
) error {
	now := time.Now().UTC()

	query := sq.
		Insert("payee_category_mappings").
		Columns(mappingColumns...).
		Values(payee, categoryID, categoryName, now, now, observations, true).
		Suffix(`
			on conflict (payee_name) do update set
				category_id = excluded.category_id,
				category_name = excluded.category_name,
				last_updated = excluded.last_updated,
				observation_count = payee_category_mappings.observation_count + excluded.observation_count,
				is_active = true`)

	if err := s.db.Insert(ctx, query, nil); err != nil {
		return fmt.Errorf("upsert payee category: %w", err)
	}

	return nil
}

func (s *Storage) DeactivatePayeeCategory(ctx context.Context, payee string) (bool, error) {
	query := sq.
		Update("payee_category_mappings").
		Set("is_active", false).
		Set("last_updated", time.Now().UTC()).
		Where(sq.Eq{"payee_name": payee, "is_active": true}).
		Suffix("returning id")

	var id int64
	err := s.db.Update(ctx, query, db.ScanOnce(&id))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db update: %w", err)
	}

	return true, nil
}

func (s *Storage) ListPayeeCategoryMappings(ctx context.Context) ([]syncer.PayeeCategoryMapping, error) {
	query := sq.
		Select(mappingColumns...).
		From("payee_category_mappings").
		OrderBy("payee_name")

	var out []syncer.PayeeCategoryMapping
	err := s.db.Select(ctx, query, db.ScanAll(&out, mappingScanArgs))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db select: %w", err)
	}

	return out, nil
}
