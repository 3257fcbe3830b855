package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pairscan/pairscan/internal/config"
	"github.com/pairscan/pairscan/internal/persistence"
	"github.com/pairscan/pairscan/internal/persistence/postgres"
	"github.com/pairscan/pairscan/internal/screening"
)

var (
	flagConfig      string
	flagVerbose     bool
	flagMetricsAddr string
)

// app bundles the wired dependencies shared by all subcommands.
type app struct {
	cfg     config.Config
	db      *sqlx.DB
	redis   *redis.Client
	candles persistence.CandleStore
	assets  persistence.AssetStore
	reports persistence.ReportStore
}

func newApp() (*app, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	db, err := sqlx.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		candles: postgres.NewCandleRepo(db, cfg.Postgres.QueryTimeout),
		assets:  postgres.NewAssetRepo(db, cfg.Postgres.QueryTimeout),
		reports: postgres.NewReportRepo(db, cfg.Postgres.QueryTimeout),
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

func (a *app) newPipeline() *screening.Pipeline {
	return screening.NewPipeline(a.cfg.Screening, a.candles, a.assets, screening.NewUniverseCache(a.redis))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pairscan",
		Short:         "Statistical pair screening and mean-reversion backtesting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
			if flagMetricsAddr != "" {
				startMetricsServer(flagMetricsAddr)
			}
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")

	root.AddCommand(newScreenCmd())
	root.AddCommand(newBacktestCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newWatchCmd())
	return root
}

func setupLogging() {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}

// parseTime accepts RFC 3339 or epoch milliseconds.
func parseTime(value string) (int64, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UnixMilli(), nil
	}
	var ms int64
	if _, err := fmt.Sscanf(value, "%d", &ms); err != nil {
		return 0, fmt.Errorf("invalid time %q: want RFC 3339 or epoch milliseconds", value)
	}
	return ms, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
