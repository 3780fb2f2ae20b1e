package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"geoatlas/internal/config"
	"geoatlas/internal/db"
	"geoatlas/internal/metastore"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "geoatlas",
		Short:         "Geodata ETL pipeline and query API",
		Long:          "Loads administrative boundaries, population and related datasets into a spatial store and serves them over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCmd(), newETLCmd(), newMigrateCmd())
	return rootCmd
}

// app bundles the configured runtime shared by every command: both stores
// open and migrated, plus the logger.
type app struct {
	cfg  *config.Config
	log  *slog.Logger
	geo  *sql.DB
	meta *metastore.Store
}

func newApp(ctx context.Context) (*app, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	geo, err := db.OpenDuckDB(ctx, cfg.GeoDBPath)
	if err != nil {
		return nil, fmt.Errorf("open geodata store: %w", err)
	}
	meta, err := metastore.Open(cfg.MetaDBPath, 4)
	if err != nil {
		_ = geo.Close()
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	return &app{cfg: cfg, log: log, geo: geo, meta: meta}, nil
}

func (a *app) Close() {
	if err := a.meta.Close(); err != nil {
		a.log.Error("closing metadata store failed", "error", err)
	}
	if err := a.geo.Close(); err != nil {
		a.log.Error("closing geodata store failed", "error", err)
	}
}
