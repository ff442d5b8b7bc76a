package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/eqtlab/ynab-syncer/api"
	"github.com/eqtlab/ynab-syncer/pkg/postgres"
	"github.com/eqtlab/ynab-syncer/pkg/up"
	"github.com/eqtlab/ynab-syncer/pkg/ynab"
	"github.com/eqtlab/ynab-syncer/storage/redis"
	"github.com/eqtlab/ynab-syncer/syncer"
)

type Config struct {
	Debug  bool            `env:"APP_DEBUG"`
	DB     postgres.Config `env:",prefix=DB_"`
	Redis  redis.Config    `env:",prefix=REDIS_"`
	HTTP   api.Config      `env:",prefix=HTTP_"`
	Up     up.Config       `env:",prefix=UP_"`
	YNAB   ynab.Config     `env:",prefix=YNAB_"`
	Syncer syncer.Config   `env:",prefix=SYNCER_"`
}

func ParseEnv(ctx context.Context) (Config, error) {
	return parse(ctx, envconfig.OsLookuper())
}

func parse(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	cfg := Config{}
	if err := envconfig.ProcessWith(ctx, &cfg, l); err != nil {
		return cfg, err
	}

	cfg.Syncer.TargetAccountID = cfg.YNAB.AccountID

	// the lock must outlive one attempt: a source fetch and a target submit, each retried
	if budget := attemptBudget(cfg); cfg.Redis.LockExpiry < budget {
		cfg.Redis.LockExpiry = budget
	}

	return cfg, nil
}

func attemptBudget(cfg Config) time.Duration {
	return cfg.Up.MaxRetryElapsed + cfg.Up.Timeout + cfg.YNAB.MaxRetryElapsed + cfg.YNAB.Timeout
}
