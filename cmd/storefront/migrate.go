package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)

			db, err := database.NewDB(cmd.Context(), cfg.DatabaseURI)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			if err := database.InitSchema(cmd.Context(), db); err != nil {
				return err
			}
			slog.Info("schema is up to date")
			return nil
		},
	}
}
