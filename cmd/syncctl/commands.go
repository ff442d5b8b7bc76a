package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/config"
	"github.com/eqtlab/ynab-syncer/pkg/db"
	"github.com/eqtlab/ynab-syncer/pkg/postgres"
	"github.com/eqtlab/ynab-syncer/pkg/up"
	"github.com/eqtlab/ynab-syncer/pkg/ynab"
	storage "github.com/eqtlab/ynab-syncer/storage/postgres"
	"github.com/eqtlab/ynab-syncer/syncer"
)

type migrateCmd struct{}

func (c *migrateCmd) Run(cc *cliContext) error {
	var cfg struct {
		DB postgres.Config `env:",prefix=DB_"`
	}
	if err := envconfig.Process(cc.ctx, &cfg); err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}

	return postgres.Migrate(cfg.DB, cc.log)
}

type resyncCmd struct{}

func (c *resyncCmd) Run(cc *cliContext) error {
	engine, closeFn, err := newEngine(cc)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := engine.Resync(cc.ctx)
	if err != nil {
		return err
	}

	fmt.Printf("payees: %d, mapped: %d, ambiguous: %d, deactivated: %d\n",
		report.Payees, report.Mapped, report.Ambiguous, report.Deactivated)

	return nil
}

type syncCmd struct {
	TransactionID string `arg:"" name:"transaction-id" help:"Up transaction id."`
}

func (c *syncCmd) Run(cc *cliContext) error {
	engine, closeFn, err := newEngine(cc)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := engine.SyncTransaction(cc.ctx, c.TransactionID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s): %s\n", res.Status(), res.Outcome, res.Message)

	return nil
}

type mappingsCmd struct{}

func (c *mappingsCmd) Run(cc *cliContext) error {
	s, closeFn, err := newStorage(cc)
	if err != nil {
		return err
	}
	defer closeFn()

	mappings, err := s.ListPayeeCategoryMappings(cc.ctx)
	if err != nil {
		return err
	}

	return printMappings(os.Stdout, mappings)
}

type processedCmd struct {
	Status string `help:"Only show records with this status." enum:"all,processed,skipped,failed" default:"all"`
	Limit  uint64 `help:"How many records to show." default:"50"`
}

func (c *processedCmd) Run(cc *cliContext) error {
	s, closeFn, err := newStorage(cc)
	if err != nil {
		return err
	}
	defer closeFn()

	status := syncer.ProcessStatus(c.Status)
	if c.Status == "all" {
		status = ""
	}

	records, err := s.ListProcessedTransactions(cc.ctx, status, c.Limit)
	if err != nil {
		return err
	}

	return printProcessed(os.Stdout, records)
}

func connect(ctx context.Context, cfg postgres.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	return pool, nil
}

func newStorage(cc *cliContext) (*storage.Storage, func(), error) {
	var cfg struct {
		DB postgres.Config `env:",prefix=DB_"`
	}
	if err := envconfig.Process(cc.ctx, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parse configuration: %w", err)
	}

	pool, err := connect(cc.ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	return storage.New(db.NewDB(pool, cc.log)), pool.Close, nil
}

// newEngine builds a syncer without a lock or job queue, which is enough for one-off runs.
func newEngine(cc *cliContext) (*syncer.Syncer, func(), error) {
	cfg, err := config.ParseEnv(cc.ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("parse configuration: %w", err)
	}

	pool, err := connect(cc.ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	engine := syncer.New(
		storage.New(db.NewDB(pool, cc.log)),
		up.NewSource(up.NewClient(cfg.Up, cc.log)),
		ynab.NewTarget(ynab.NewClient(cfg.YNAB, cc.log), cfg.YNAB.BudgetID),
		nil,
		nil,
		cc.log.With(zap.String("cmd", "syncctl")),
		cfg.Syncer,
	)

	return engine, pool.Close, nil
}

func printMappings(w io.Writer, mappings []syncer.PayeeCategoryMapping) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAYEE\tCATEGORY\tCATEGORY ID\tSEEN\tACTIVE\tUPDATED")
	for _, m := range mappings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%s\n",
			m.PayeeName, m.CategoryName, m.CategoryID, m.ObservationCount, m.IsActive, m.LastUpdated.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printProcessed(w io.Writer, records []syncer.ProcessedTransaction) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE ID\tTARGET ID\tSTATUS\tPAYEE\tAMOUNT\tDATE\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.SourceTransactionID, deref(r.TargetTransactionID), r.Status, r.PayeeName, r.Amount, r.Date, deref(r.ErrorMessage))
	}
	return tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
