package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pairscan/pairscan/internal/models"
	"github.com/pairscan/pairscan/internal/providers/binance"
)

// klineBatchSize is Binance's maximum candles per request.
const klineBatchSize = 1000

func newSyncCmd() *cobra.Command {
	var (
		symbolsFlag string
		barsFlag    int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the asset registry and backfill candles from Binance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client := binance.NewClient()

			assets, err := client.FetchExchangeInfo(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.assets.UpsertAssets(cmd.Context(), assets); err != nil {
				return err
			}
			log.Info().Int("assets", len(assets)).Msg("asset registry refreshed")

			symbols := selectSymbols(assets, symbolsFlag, a.cfg.Screening.ReferenceCurrency)
			timeframes := []models.Timeframe{models.Timeframe1m, models.Timeframe5m, models.Timeframe1d}

			for _, symbol := range symbols {
				for _, timeframe := range timeframes {
					bars := barsFlag
					if timeframe == models.Timeframe1d {
						bars = 30
					}
					if err := syncCandles(cmd.Context(), a, client, symbol, timeframe, bars); err != nil {
						return err
					}
				}
				log.Info().Str("symbol", symbol).Msg("candles synced")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbolsFlag, "symbols", "", "comma-separated symbols (default: all reference-quoted)")
	cmd.Flags().IntVar(&barsFlag, "bars", 2000, "intraday candles to backfill per symbol and timeframe")
	return cmd
}

func selectSymbols(assets []models.Asset, symbolsFlag, referenceCurrency string) []string {
	if symbolsFlag != "" {
		parts := strings.Split(symbolsFlag, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(strings.ToUpper(p)); s != "" {
				symbols = append(symbols, s)
			}
		}
		return symbols
	}

	var symbols []string
	for _, asset := range assets {
		if asset.QuoteAsset == referenceCurrency {
			symbols = append(symbols, asset.Symbol)
		}
	}
	return symbols
}

// syncCandles pages backward from the latest candle until bars candles
// are stored.
func syncCandles(ctx context.Context, a *app, client *binance.Client, symbol string, timeframe models.Timeframe, bars int) error {
	var endTime int64
	remaining := bars

	for remaining > 0 {
		limit := remaining
		if limit > klineBatchSize {
			limit = klineBatchSize
		}

		batch, err := client.FetchCandles(ctx, symbol, timeframe, limit, endTime)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := a.candles.SaveCandles(ctx, symbol, timeframe, batch); err != nil {
			return err
		}

		remaining -= len(batch)
		endTime = batch[0].OpenTime - 1
		if len(batch) < limit {
			return nil
		}
	}
	return nil
}
