package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/screening"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect and maintain stored screening reports",
	}
	cmd.AddCommand(newReportListCmd())
	cmd.AddCommand(newReportGetCmd())
	cmd.AddCommand(newReportDeleteCmd())
	cmd.AddCommand(newReportRescoreCmd())
	return cmd
}

func newReportListCmd() *cobra.Command {
	var fromFlag, toFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports in a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			from := time.Now().AddDate(0, 0, -7).UnixMilli()
			to := time.Now().UnixMilli()
			if fromFlag != "" {
				parsed, err := parseTime(fromFlag)
				if err != nil {
					return err
				}
				from = parsed
			}
			if toFlag != "" {
				parsed, err := parseTime(toFlag)
				if err != nil {
					return err
				}
				to = parsed
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := a.reports.ListReports(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Printf("%s  %s  candidates=%d\n",
					r.ID, time.UnixMilli(r.Date).UTC().Format(time.RFC3339), len(r.Candidates))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFlag, "from", "", "range start (default 7 days ago)")
	cmd.Flags().StringVar(&toFlag, "to", "", "range end (default now)")
	return cmd
}

func newReportGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.reports.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(report)
		},
	}
}

func newReportDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a report with its candidates and trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reports.DeleteReport(cmd.Context(), args[0]); err != nil {
				return err
			}
			log.Info().Str("report_id", args[0]).Msg("report deleted")
			return nil
		},
	}
}

// rescore recomputes candidate scores from their stored indicator values
// under the current thresholds and weights. The report is rebuilt in
// place: delete then recreate with the same identity.
func newReportRescoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescore <id>",
		Short: "Recompute a report's candidate scores with current weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.reports.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			evaluator := screening.NewPairEvaluator(a.cfg.Screening, models.Timeframe1m)
			for i := range report.Candidates {
				report.Candidates[i].Score = evaluator.Score(report.Candidates[i])
			}

			if err := a.reports.DeleteReport(cmd.Context(), report.ID); err != nil {
				return err
			}
			if err := a.reports.CreateReport(cmd.Context(), *report); err != nil {
				return err
			}
			if len(report.Backtest) > 0 {
				if err := a.reports.AppendBacktestTrades(cmd.Context(), report.ID, report.Backtest); err != nil {
					return err
				}
			}

			log.Info().
				Str("report_id", report.ID).
				Int("candidates", len(report.Candidates)).
				Msg("scores recalculated")
			return nil
		},
	}
}
