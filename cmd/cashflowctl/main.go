// Command cashflowctl is the operator CLI for the cashflow services.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"cashflow/internal/log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:               "cashflowctl",
		Short:             "Operate the cashflow forecasting services",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./cashflow.yaml or $HOME/.config/cashflow/cashflow.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("db", "./data/cashflow.db", "SQLite database path")
	rootCmd.PersistentFlags().String("api", "http://localhost:8081", "cashflow API base URL")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("sqlite_db_path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api"))

	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(importSheetsCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "cashflow"))
		}
		viper.SetConfigName("cashflow")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CASHFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	format := viper.GetString("log_format")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", format)
	}
	log.SetDefault(log.New(log.Config{
		Level:     log.ParseLevel(viper.GetString("log_level")),
		Format:    format,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	}))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cashflowctl", version)
		},
	}
}
