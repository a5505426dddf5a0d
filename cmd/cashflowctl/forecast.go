package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/datasource/remote"
	"cashflow/internal/services"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast <request.yaml>",
		Short: "Project declared recurring items into a forecast band",
		Long: `Reads a projection request (granularity, horizon_days, inflows, outflows)
from a YAML file and prints the projected forecast as JSON.

Without --business the projection runs locally and nothing is stored.
With --business it is submitted to the API, stored, and may raise alerts.`,
		Args: cobra.ExactArgs(1),
		RunE: runForecast,
	}
	cmd.Flags().Int64("business", 0, "store the projection for this business through the API")
	cmd.Flags().String("today", "", "project from this date (YYYY-MM-DD) instead of today")
	cmd.Flags().Int("max-horizon", services.DefaultMaxHorizonDays, "longest accepted horizon in days")
	return cmd
}

func runForecast(cmd *cobra.Command, args []string) error {
	req, err := loadProjectionRequest(args[0])
	if err != nil {
		return err
	}

	businessID, _ := cmd.Flags().GetInt64("business")
	if businessID > 0 {
		client, err := remote.New(viper.GetString("api_url"), nil)
		if err != nil {
			return err
		}
		f, err := client.Project(cmd.Context(), businessID, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), f)
	}

	today := core.DateOf(time.Now())
	if s, _ := cmd.Flags().GetString("today"); s != "" {
		if today, err = core.ParseDate(s); err != nil {
			return err
		}
	}
	maxHorizon, _ := cmd.Flags().GetInt("max-horizon")

	f, err := services.BuildForecast(req, today, maxHorizon)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), f)
}

// loadProjectionRequest reads YAML through a JSON round trip so amounts may
// be written either as numbers or as quoted strings.
func loadProjectionRequest(path string) (services.ProjectionRequest, error) {
	var req services.ProjectionRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return req, fmt.Errorf("parse request: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return req, fmt.Errorf("parse request: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
