package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dashboard-baker/baker/internal/backend"
	"github.com/dashboard-baker/baker/internal/dashboard"
)

var dashboardParams []string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <board>",
	Short: "Refresh a dashboard once and print every region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hub, err := dashboard.NewHub(dashboard.HubConfig{
			Fetcher: backend.NewClient(cfg.BackendURL, cfg.BackendTimeout),
			Logger:  slog.New(slog.DiscardHandler),
		})
		if err != nil {
			return err
		}
		defer hub.Dispose()
		return runDashboard(cmd.Context(), cmd.OutOrStdout(), hub, args[0], dashboardParams)
	},
}

func init() {
	dashboardCmd.Flags().StringArrayVar(&dashboardParams, "param", nil, "board parameter as key=value, repeatable")
}

func runDashboard(ctx context.Context, w io.Writer, hub *dashboard.Hub, name string, params []string) error {
	input, err := parsePairs(params)
	if err != nil {
		return err
	}
	board, owned, err := hub.Resolve(name, input)
	if err != nil {
		return err
	}
	if owned {
		defer board.Dispose()
	}
	report, err := board.Refresh(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n", colorBold.Sprint(board.Title()), colorFaint.Sprint(board.Params().Encode()))
	for _, rv := range board.Snapshot() {
		printRegion(w, rv)
	}
	summary := fmt.Sprintf("%d regiões em %s", len(report.Regions), report.Duration.Round(time.Millisecond))
	if failed := report.Failed(); failed > 0 {
		summary += colorRed.Sprintf(", %d com falha", failed)
	}
	_, err = fmt.Fprintln(w, colorFaint.Sprint(summary))
	return err
}
