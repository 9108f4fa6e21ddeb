package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/warden-app/warden/internal/app"
	"github.com/warden-app/warden/internal/platform/db"
	"github.com/warden-app/warden/internal/seed"
	"github.com/warden-app/warden/migrations"
)

func main() {
	var (
		down     = flag.Bool("down", false, "roll back the most recent migration")
		withSeed = flag.Bool("seed", false, "provision the default access-control graph after migrating")
	)
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("load migrations", slog.Any("error", err))
		os.Exit(1)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg.PGDSN))
	if err != nil {
		logger.Error("open migrator", slog.Any("error", err))
		os.Exit(1)
	}
	defer m.Close()

	if *down {
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migrate down", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("rolled back one migration")
		return
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migrate up", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	if !*withSeed {
		return
	}

	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := seed.Run(ctx, pool, logger); err != nil {
		logger.Error("seed", slog.Any("error", err))
		os.Exit(1)
	}
}

// migrateURL rewrites a postgres:// DSN to the scheme the pgx/v5 migrate
// driver registers.
func migrateURL(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") {
		return "pgx5://" + strings.TrimPrefix(dsn, "postgres://")
	}
	if strings.HasPrefix(dsn, "postgresql://") {
		return "pgx5://" + strings.TrimPrefix(dsn, "postgresql://")
	}
	return dsn
}
