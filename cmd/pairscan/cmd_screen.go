package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pairscan/pairscan/internal/models"
)

func newScreenCmd() *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Run the pair-screening pipeline and persist the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now().UnixMilli()
			if dateFlag != "" {
				parsed, err := parseTime(dateFlag)
				if err != nil {
					return err
				}
				date = parsed
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			candidates, err := a.newPipeline().BuildScreeningReport(cmd.Context(), date)
			if err != nil {
				return err
			}

			report := models.Report{
				ID:         uuid.NewString(),
				Date:       date,
				CreatedAt:  time.Now().UTC(),
				Candidates: candidates,
			}
			if err := a.reports.CreateReport(cmd.Context(), report); err != nil {
				return err
			}

			log.Info().
				Str("report_id", report.ID).
				Int("candidates", len(candidates)).
				Msg("report persisted")

			for i, c := range candidates {
				if i >= 20 {
					fmt.Printf("... and %d more\n", len(candidates)-i)
					break
				}
				fmt.Printf("%-24s score=%6.2f p=%.4f halfLife=%.1f corrP=%.3f corrR=%.3f crossings=%d\n",
					c.PairSymbol(), c.Score, c.PValue, c.HalfLife,
					c.CorrelationByPrices, c.CorrelationByReturns, c.Crossings)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "snapshot time (RFC 3339 or epoch ms, default now)")
	return cmd
}
