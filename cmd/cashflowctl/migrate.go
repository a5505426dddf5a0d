package main

import (
	"fmt"
	"log/slog"

	"cashflow/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbPath := viper.GetString("sqlite_db_path")
			slog.Info("Running database migrations", "database", dbPath)
			if err := storage.RunMigrations(dbPath); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return printVersion(cmd, dbPath)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			dbPath := viper.GetString("sqlite_db_path")
			slog.Info("Rolling back database migrations", "database", dbPath, "steps", steps)
			if err := storage.RollbackMigrations(dbPath, steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			return printVersion(cmd, dbPath)
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")

	show := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd, viper.GetString("sqlite_db_path"))
		},
	}

	cmd.AddCommand(up, down, show)
	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	v, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
