package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pairscan/pairscan/internal/backtest"
)

func newBacktestCmd() *cobra.Command {
	var (
		reportID  string
		startFlag string
		endFlag   string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a report's pairs through the strategy and attach the trade ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime, err := parseTime(startFlag)
			if err != nil {
				return err
			}
			endTime, err := parseTime(endFlag)
			if err != nil {
				return err
			}
			if endTime <= startTime {
				return fmt.Errorf("end must be after start")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.reports.GetReport(cmd.Context(), reportID)
			if err != nil {
				return err
			}
			if len(report.Candidates) == 0 {
				return fmt.Errorf("report %s has no candidates", reportID)
			}

			pairs := make([]backtest.Pair, len(report.Candidates))
			for i, c := range report.Candidates {
				pairs[i] = backtest.Pair{AssetA: c.AssetA, AssetB: c.AssetB}
			}

			simulator := backtest.NewSimulator(a.cfg.Backtest, a.cfg.Strategy, a.candles)
			trades, err := simulator.Run(cmd.Context(), pairs, startTime, endTime)
			if err != nil {
				return err
			}

			if err := a.reports.AppendBacktestTrades(cmd.Context(), reportID, trades); err != nil {
				return err
			}

			totalROI := 0.0
			wins := 0
			for _, t := range trades {
				totalROI += t.ROI
				if t.ROI > 0 {
					wins++
				}
			}
			log.Info().
				Str("report_id", reportID).
				Int("trades", len(trades)).
				Int("wins", wins).
				Float64("total_roi_pct", totalROI).
				Msg("backtest complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&reportID, "report", "", "report ID to backtest")
	cmd.Flags().StringVar(&startFlag, "start", "", "replay start (RFC 3339 or epoch ms)")
	cmd.Flags().StringVar(&endFlag, "end", "", "replay end (RFC 3339 or epoch ms)")
	cmd.MarkFlagRequired("report")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}
