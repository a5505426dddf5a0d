package main

import (
	"fmt"

	"cashflow/internal/services"
	"cashflow/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func assessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Score every business in the SQLite database once",
		Long: `Runs one risk pass like the risk worker does. Alerts are stored directly
rather than published.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := storage.NewSQLiteRepository(viper.GetString("sqlite_db_path"))
			if err != nil {
				return err
			}
			defer repo.Close()

			cfg := services.DefaultRiskProcessorConfig()
			cfg.CriticalDeclinePercent, _ = cmd.Flags().GetFloat64("critical-decline")
			p := services.NewRiskProcessor(repo, services.NewAlertDispatcher(nil, repo), cfg)
			n, err := p.AssessAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "assessed %d businesses\n", n)
			return err
		},
	}
	cmd.Flags().Float64("critical-decline", services.DefaultCriticalDeclinePercent, "net cashflow change that raises a critical alert")
	return cmd
}
