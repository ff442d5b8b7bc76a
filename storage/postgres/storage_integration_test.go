//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/pkg/db"
	"github.com/eqtlab/ynab-syncer/pkg/postgres"
	"github.com/eqtlab/ynab-syncer/syncer"
)

func setupStorage(t *testing.T) *Storage {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("syncer"),
		tcpostgres.WithUsername("syncer"),
		tcpostgres.WithPassword("syncer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := postgres.Config{URL: dsn, MigrationsPath: "file://../../migrations", MaxConns: 5}
	require.NoError(t, postgres.Migrate(cfg, zap.NewNop()))
	// a second run is a no-op
	require.NoError(t, postgres.Migrate(cfg, zap.NewNop()))

	pool, err := postgres.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return New(db.NewDB(pool, zap.NewNop()))
}

func TestIntegration_ProcessedTransactions(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	ok, err := s.HasProcessedTransaction(ctx, "T1")
	require.NoError(t, err)
	assert.False(t, ok)

	targetID := "Y1"
	require.NoError(t, s.CreateProcessedTransaction(ctx, syncer.ProcessedTransaction{
		SourceTransactionID: "T1",
		TargetTransactionID: &targetID,
		PayeeName:           "Woolworths",
		Amount:              -12500,
		Date:                "2024-03-01",
		Status:              syncer.StatusProcessed,
	}))

	ok, err = s.HasProcessedTransaction(ctx, "T1")
	require.NoError(t, err)
	assert.True(t, ok)

	err = s.CreateProcessedTransaction(ctx, syncer.ProcessedTransaction{
		SourceTransactionID: "T1",
		PayeeName:           "Woolworths",
		Status:              syncer.StatusFailed,
	})
	assert.ErrorIs(t, err, syncer.ErrAlreadyProcessed)

	reason := "Internal transfer detected"
	require.NoError(t, s.CreateProcessedTransaction(ctx, syncer.ProcessedTransaction{
		SourceTransactionID: "T2",
		PayeeName:           "Transfer to Savings",
		Amount:              -100000,
		Date:                "2024-03-01",
		Status:              syncer.StatusSkipped,
		ErrorMessage:        &reason,
	}))

	all, err := s.ListProcessedTransactions(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "T2", all[0].SourceTransactionID)
	assert.Equal(t, "T1", all[1].SourceTransactionID)
	require.NotNil(t, all[1].TargetTransactionID)
	assert.Equal(t, "Y1", *all[1].TargetTransactionID)
	assert.Equal(t, syncer.StatusProcessed, all[1].Status)

	skipped, err := s.ListProcessedTransactions(ctx, syncer.StatusSkipped, 10)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	require.NotNil(t, skipped[0].ErrorMessage)
	assert.Equal(t, reason, *skipped[0].ErrorMessage)

	failed, err := s.ListProcessedTransactions(ctx, syncer.StatusFailed, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestIntegration_PayeeCategoryMappings(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	m, err := s.GetPayeeCategory(ctx, "Woolworths")
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, s.UpsertPayeeCategory(ctx, "Woolworths", "A", "Groceries", 2))
	require.NoError(t, s.UpsertPayeeCategory(ctx, "Woolworths", "C", "Takeaway", 1))

	m, err = s.GetPayeeCategory(ctx, "Woolworths")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "C", m.CategoryID)
	assert.Equal(t, "Takeaway", m.CategoryName)
	assert.Equal(t, 3, m.ObservationCount)
	assert.True(t, m.IsActive)
	assert.False(t, m.LastUpdated.Before(m.FirstSeen))

	deactivated, err := s.DeactivatePayeeCategory(ctx, "Woolworths")
	require.NoError(t, err)
	assert.True(t, deactivated)

	deactivated, err = s.DeactivatePayeeCategory(ctx, "Woolworths")
	require.NoError(t, err)
	assert.False(t, deactivated)

	m, err = s.GetPayeeCategory(ctx, "Woolworths")
	require.NoError(t, err)
	assert.Nil(t, m)

	// observing again reactivates
	require.NoError(t, s.UpsertPayeeCategory(ctx, "Woolworths", "C", "Takeaway", 1))
	m, err = s.GetPayeeCategory(ctx, "Woolworths")
	require.NoError(t, err)
	require.NotNil(t, m)

	require.NoError(t, s.UpsertPayeeCategory(ctx, "Aldi", "A", "Groceries", 1))
	all, err := s.ListPayeeCategoryMappings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Aldi", all[0].PayeeName)
	assert.Equal(t, "Woolworths", all[1].PayeeName)
}

func TestIntegration_RunInTransactionRollsBack(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context, tx syncer.Storage) error {
		if err := tx.UpsertPayeeCategory(ctx, "Aldi", "A", "Groceries", 1); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	m, err := s.GetPayeeCategory(ctx, "Aldi")
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context, tx syncer.Storage) error {
		return tx.UpsertPayeeCategory(ctx, "Aldi", "A", "Groceries", 1)
	}))

	m, err = s.GetPayeeCategory(ctx, "Aldi")
	require.NoError(t, err)
	require.NotNil(t, m)
}
