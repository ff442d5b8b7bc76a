package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // registers postgres:// for migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // registers file:// for migrate
	"go.uber.org/zap"
)

// Migrate applies every pending migration found at cfg.MigrationsPath. An up to date schema is not an error.
func Migrate(cfg Config, log *zap.Logger) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.URL)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("close migrate", zap.NamedError("source_error", srcErr), zap.NamedError("db_error", dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("schema is up to date")
		return nil
	}

	var dirtyErr migrate.ErrDirty
	if errors.As(err, &dirtyErr) {
		return fmt.Errorf("migrate up: dirty database version %d", dirtyErr.Version)
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}

	log.Info("schema migrated", zap.Uint("version", version))

	return nil
}
