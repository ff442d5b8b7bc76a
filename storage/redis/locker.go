package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eqtlab/ynab-syncer/syncer"
)

type Config struct {
	Addr       string        `env:"ADDR"`                    // Locking is disabled when empty
	Password   string        `env:"PASSWORD"`
	DB         int           `env:"DB, default=0"`
	LockExpiry time.Duration `env:"LOCK_EXPIRY, default=3m"` // Raised to the clients' retry budget when shorter
}

func Connect(ctx context.Context, cfg Config) (*goredislib.Client, error) {
	client := goredislib.NewClient(&goredislib.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Locker implements syncer.Locker with a single try redsync mutex per key.
type Locker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger *zap.Logger
}

var _ syncer.Locker = (*Locker)(nil)

func NewLocker(client goredislib.UniversalClient, expiry time.Duration, l *zap.Logger) *Locker {
	return &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: l,
	}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, syncer.ErrLocked
		}
		return nil, fmt.Errorf("redsync lock %q: %w", key, err)
	}

	return func() {
		// the attempt may have outlived the context it started with
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if ok, err := mutex.UnlockContext(ctx); err != nil || !ok {
			l.logger.Warn("redsync unlock", zap.String("key", key), zap.Bool("released", ok), zap.Error(err))
		}
	}, nil
}
