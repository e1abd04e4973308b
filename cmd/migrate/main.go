package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"bookshelf/internal/config"
	"bookshelf/internal/platform/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, *command, *name, logger); err != nil {
		logger.Fatal("migration failed", zap.String("command", *command), zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, command, name string, logger *zap.Logger) error {
	if command == "create" {
		if name == "" {
			return fmt.Errorf("name is required for 'create' command")
		}
		if err := goose.Create(nil, cfg.MigrationsDir, name, "sql"); err != nil {
			return err
		}
		logger.Info("migration created", zap.String("name", name), zap.String("dir", cfg.MigrationsDir))
		return nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", config.RedactDSN(cfg.DBDSN), err)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return migrate(db, cfg.MigrationsDir, command, logger)
}

func migrate(db *sql.DB, dir, command string, logger *zap.Logger) error {
	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		if err := goose.Up(db, dir); err != nil {
			return err
		}
		logger.Info("migrations applied", zap.String("dir", dir))
	case "down":
		if err := goose.Down(db, dir); err != nil {
			return err
		}
		logger.Info("migration rolled back", zap.String("dir", dir))
	case "status":
		return goose.Status(db, dir)
	default:
		return fmt.Errorf("unknown command: %s. Use: up, down, status, create", command)
	}
	return nil
}
