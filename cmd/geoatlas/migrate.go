package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade both stores",
		Long:  "Opens the geodata and metadata stores, applying the embedded schema and any pending migrations, then exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			a.log.Info("stores migrated",
				"geo_db", a.cfg.GeoDBPath,
				"meta_db", a.cfg.MetaDBPath)
			return nil
		},
	}
}
