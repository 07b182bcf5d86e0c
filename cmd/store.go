package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/machine-booker/internal/config"
	"github.com/example/machine-booker/internal/db"
	"github.com/example/machine-booker/internal/jobs"
	"github.com/example/machine-booker/internal/migrate"
)

// openJobStore returns the configured job store and a func releasing it.
func openJobStore(ctx context.Context, cfg config.Config, migrateUp bool, logger *slog.Logger) (jobs.Store, func(), error) {
	if cfg.JobStore != config.StorePostgres {
		return jobs.NewFileStore(cfg.JobsFile, logger), func() {}, nil
	}

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, nil, err
		}
	}
	return jobs.NewPGStore(d, logger), d.Close, nil
}
