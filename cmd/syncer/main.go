package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
	adapter "github.com/vgarvardt/gue/v5/adapter/zap"
	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/api"
	"github.com/eqtlab/ynab-syncer/config"
	"github.com/eqtlab/ynab-syncer/pkg/db"
	"github.com/eqtlab/ynab-syncer/pkg/logger"
	"github.com/eqtlab/ynab-syncer/pkg/postgres"
	"github.com/eqtlab/ynab-syncer/pkg/up"
	"github.com/eqtlab/ynab-syncer/pkg/ynab"
	storage "github.com/eqtlab/ynab-syncer/storage/postgres"
	"github.com/eqtlab/ynab-syncer/storage/redis"
	"github.com/eqtlab/ynab-syncer/syncer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(true)

	cfg, err := config.ParseEnv(ctx)
	if err != nil {
		log.Fatal("can't parse configuration", zap.Error(err))
	}

	log = logger.New(cfg.Debug)

	if err := postgres.Migrate(cfg.DB, log); err != nil {
		log.Fatal("can't migrate db", zap.Error(err))
	}

	pool, err := postgres.Connect(ctx, cfg.DB)
	if err != nil {
		log.Fatal("can't connect to db", zap.Error(err))
	}
	defer pool.Close()

	database := db.NewDB(pool, log)
	store := storage.New(database)

	var locker syncer.Locker
	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("can't connect to redis", zap.Error(err))
		}
		defer client.Close()

		locker = redis.NewLocker(client, cfg.Redis.LockExpiry, log)
	} else {
		log.Info("redis is not configured, transactions are processed without a lock")
	}

	q, err := gue.NewClient(pgxv5.NewConnPool(pool), gue.WithClientLogger(adapter.New(log)))
	if err != nil {
		log.Fatal("pgx adapter for gue", zap.Error(err))
	}

	upClient := up.NewClient(cfg.Up, log)
	ynabClient := ynab.NewClient(cfg.YNAB, log)

	engine := syncer.New(
		store,
		up.NewSource(upClient),
		ynab.NewTarget(ynabClient, cfg.YNAB.BudgetID),
		locker,
		q,
		log,
		cfg.Syncer,
	)

	if cfg.Up.WebhookURL != "" {
		if _, err := upClient.EnsureWebhook(ctx, cfg.Up.WebhookURL); err != nil {
			log.Error("can't register up webhook", zap.Error(err))
		}
	}

	if cfg.Syncer.ResyncOnStart {
		if err := engine.EnqueueResync(ctx, "startup"); err != nil {
			log.Error("can't enqueue startup resync", zap.Error(err))
		}
	}

	server := api.New(cfg.HTTP, engine, log)

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := server.Run(ctx); err != nil {
			log.Error("http server", zap.Error(err))
			stop()
		}
	})

	runForever(
		ctx,
		log,
		func() {
			if err := engine.Run(ctx); err != nil {
				log.Error("syncer workers", zap.Error(err))
			}
		},
	)

	wg.Wait()
	log.Info("syncer has been stopped")
}

// runForever spawns goroutine for every f in ff. Each f is logged and restarted if panic occurs, until ctx is done.
// It's non-blocking.
func runForever(ctx context.Context, log *zap.Logger, ff ...func()) {
	for i := range ff {
		f := ff[i]
		go func() {
			var pc panics.Catcher
			pc.Try(f)
			if err := pc.Recovered().AsError(); err != nil {
				log.Error("panic", zap.Error(err))

				select {
				case <-ctx.Done():
				case <-time.After(time.Minute):
					runForever(ctx, log, f)
				}
			}
		}()
	}
}
