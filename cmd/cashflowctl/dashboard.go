package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"cashflow/internal/core"
	"cashflow/internal/datasource"
	"cashflow/internal/datasource/remote"
	"cashflow/internal/services"
	"cashflow/internal/session"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard <business-id>",
		Short: "Show a business dashboard from the API",
		Args:  cobra.ExactArgs(1),
		RunE:  runDashboard,
	}
	cmd.Flags().String("from", "", "first charted day (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last charted day (YYYY-MM-DD)")
	cmd.Flags().Bool("json", false, "print the raw snapshot")
	cmd.Flags().Bool("alerts", false, "also list open alerts")
	cmd.Flags().Bool("client-side", false, "assemble the snapshot locally from ledger reads")
	cmd.Flags().Float64("critical-decline", -10, "net cashflow change that marks a critical risk")
	return cmd
}

func runDashboard(cmd *cobra.Command, args []string) error {
	businessID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || businessID <= 0 {
		return fmt.Errorf("invalid business id %q", args[0])
	}
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}

	client, err := remote.New(viper.GetString("api_url"), nil)
	if err != nil {
		return err
	}
	var snap core.DashboardSnapshot
	if clientSide, _ := cmd.Flags().GetBool("client-side"); clientSide {
		decline, _ := cmd.Flags().GetFloat64("critical-decline")
		snap, err = loadClientSide(cmd.Context(), client, businessID, decline)
	} else {
		snap, err = client.Dashboard(cmd.Context(), businessID, from, to)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(out, snap)
	}
	printSnapshot(out, snap)

	if withAlerts, _ := cmd.Flags().GetBool("alerts"); withAlerts {
		alerts, err := client.ListAlerts(cmd.Context(), businessID, false)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nOpen alerts: %d\n", len(alerts))
		for _, a := range alerts {
			fmt.Fprintf(out, "  [%s] %s\n", a.Level, a.Message)
		}
	}
	return nil
}

// loadClientSide assembles the snapshot in-process from the API's ledger
// reads. Forecast and risk history are not fetched in this mode.
func loadClientSide(ctx context.Context, ledger datasource.LedgerReader, businessID int64, criticalDecline float64) (core.DashboardSnapshot, error) {
	sessions := session.NewManager()
	sessions.Start("", "", businessID)
	defer func() { _ = sessions.End() }()

	loader := session.NewDashboardLoader(
		services.DashboardSources{Ledger: ledger},
		sessions,
		session.NewTracker[core.DashboardSnapshot](),
		criticalDecline,
	)
	state, _ := loader.Load(ctx)
	switch st := state.(type) {
	case session.Loaded[core.DashboardSnapshot]:
		return st.Data, nil
	case session.Failed[core.DashboardSnapshot]:
		return core.DashboardSnapshot{}, st.Err
	default:
		return core.DashboardSnapshot{}, fmt.Errorf("dashboard for business %d did not load", businessID)
	}
}

func printSnapshot(out io.Writer, snap core.DashboardSnapshot) {
	fmt.Fprintf(out, "Business %d, window %s to %s, %d transactions\n\n",
		snap.BusinessID, snap.WindowStart.Key(), snap.WindowEnd.Key(), snap.TransactionCount)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE\tCHANGE\tTREND\tBAND")
	for _, m := range []core.HeadlineMetric{
		snap.Headlines.NetCashflow,
		snap.Headlines.LiquidityScore,
		snap.Headlines.Volatility,
		snap.Headlines.ProjectedRisk,
	} {
		change := "n/a"
		if m.ChangePercent != nil {
			change = fmt.Sprintf("%+.1f%%", *m.ChangePercent)
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\n", m.Name, m.Value, change, m.Trend, m.Band)
	}
	tw.Flush()

	if len(snap.Recommendations) > 0 {
		fmt.Fprintln(out, "\nRecommendations:")
		for _, r := range snap.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
}

func dateFlag(cmd *cobra.Command, name string) (*core.Date, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return nil, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}
