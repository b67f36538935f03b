package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PhilTenno/filesyncgo/internal/audit"
	"github.com/PhilTenno/filesyncgo/internal/config"
	"github.com/PhilTenno/filesyncgo/internal/database"
	"github.com/PhilTenno/filesyncgo/internal/hashing"
	"github.com/PhilTenno/filesyncgo/internal/repository"
	"github.com/PhilTenno/filesyncgo/internal/service"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "filesyncctl",
		Short:        "Administer file sync trigger tokens",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTokenCmd())
	return root
}

type app struct {
	db     *database.DB
	tokens *service.TokenManager
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	credRepo := repository.NewCredentialRepository(db.DB)
	windowRepo := repository.NewRateWindowRepository(db.DB)
	hasher := hashing.NewHasher(cfg.Argon2Params())
	tokens := service.NewTokenManager(db.DB, credRepo, windowRepo, hasher, audit.NewLogRecorder(), cfg.SingleTokenMode)

	return &app{db: db, tokens: tokens}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func openDB(ctx context.Context, databaseURL string) (*database.DB, error) {
	db, err := database.Connect(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.RunMigrations(db); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", db.DriverName())
			return nil
		},
	}
}
