/*Operator commands for the syncer: migrations, resyncs, one-off syncs and ledger inspection.*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/pkg/logger"
)

// cliContext is what every command runs with
type cliContext struct {
	ctx context.Context
	log *zap.Logger
}

var cli struct {
	Debug bool `help:"Log at debug level." env:"APP_DEBUG"`

	Migrate   migrateCmd   `cmd:"" help:"Apply pending database migrations."`
	Resync    resyncCmd    `cmd:"" help:"Rebuild payee category mappings from the budget history."`
	Sync      syncCmd      `cmd:"" help:"Synchronize a single bank transaction by id."`
	Mappings  mappingsCmd  `cmd:"" help:"List payee category mappings."`
	Processed processedCmd `cmd:"" help:"List processed transactions, newest first."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k := kong.Parse(&cli,
		kong.Name("syncctl"),
		kong.Description("Up Bank to YNAB syncer operator tool."),
		kong.UsageOnError(),
	)

	err := k.Run(&cliContext{ctx: ctx, log: logger.New(cli.Debug)})
	k.FatalIfErrorf(err)
}
