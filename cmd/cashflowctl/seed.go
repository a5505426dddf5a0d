package main

import (
	"fmt"

	"cashflow/internal/datasource"
	"cashflow/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <seed.yaml>",
		Short: "Load businesses, categories and transactions from a YAML seed into SQLite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := datasource.LoadSeed(args[0])
			if err != nil {
				return err
			}
			repo, err := storage.NewSQLiteRepository(viper.GetString("sqlite_db_path"))
			if err != nil {
				return err
			}
			defer repo.Close()

			created, err := seed.Apply(cmd.Context(), repo)
			if err != nil {
				return fmt.Errorf("apply seed: %w", err)
			}
			for _, b := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "created business %d %q\n", b.ID, b.Name)
			}
			return nil
		},
	}
}
