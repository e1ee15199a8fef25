// tradesight reconciles broker executions into a FIFO trade ledger and serves
// behavior analytics, strategy simulations, market signals and price alerts.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/trade-journal/internal/api"
	"github.com/trogers1052/trade-journal/internal/kafka"
	"github.com/trogers1052/trade-journal/internal/logging"
	"github.com/trogers1052/trade-journal/internal/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tradesight",
		Short:         "Trade reconciliation and market-signal analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importPendingCmd())
	rootCmd.AddCommand(checkAlertsCmd())
	rootCmd.AddCommand(syncBrokerCmd())
	rootCmd.AddCommand(signalsCmd())
	rootCmd.AddCommand(prunePricesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp builds the application for one command run and tears it down afterwards.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	var noConsumers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, Kafka consumers and the alert loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.db.Migrate(a.cfg.Database.MigrationsDir); err != nil {
					return err
				}
				return serve(ctx, a, !noConsumers)
			})
		},
	}
	cmd.Flags().BoolVar(&noConsumers, "no-consumers", false, "Do not start the Kafka consumers")
	return cmd
}

func serve(ctx context.Context, a *app, consumers bool) error {
	deps := api.Deps{
		Importer: a.importer,
		Store:    a.db,
		Signals:  a.signals,
		Behavior: a.behavior,
		Paths:    a.paths,
		Alerts:   a.alerts,
		Logger:   a.logger,
	}
	if a.broker != nil {
		deps.Broker = a.broker
	}

	server := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           api.SetupRoutes(api.NewHandler(deps)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if consumers && a.cfg.Kafka.Enabled() {
		kc := a.cfg.Kafka
		executions := kafka.NewConsumer(kc.Brokers, kc.ExecutionsTopic, kc.GroupID, a.db, a.importer, a.logger)
		holdings := kafka.NewHoldingsConsumer(kc.Brokers, kc.HoldingsTopic, kc.GroupID+"-holdings", a.db, a.logger)

		g.Go(func() error { return executions.Start(ctx) })
		g.Go(func() error { return holdings.Start(ctx) })
	}

	if every := a.cfg.Analysis.AlertEvery; every > 0 {
		g.Go(func() error {
			alertLoop(ctx, a, every)
			return nil
		})
	}

	return g.Wait()
}

// alertLoop runs an alert pass, then refreshes watchlist snapshots, on every tick.
func alertLoop(ctx context.Context, a *app, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		passCtx, span := telemetry.StartSpan(ctx, "alerts.loop")
		logger := logging.WithTrace(passCtx, a.logger)

		res, err := a.alerts.Run(passCtx)
		if err != nil {
			telemetry.RecordError(span, err)
			logger.Error("alert pass failed", zap.Error(err))
		} else {
			logger.Info("alert pass complete",
				zap.Int("processed", res.Processed),
				zap.Int("triggered", res.Triggered),
				zap.Int("failed", res.Failed))
		}

		if len(a.cfg.File.Watchlist) > 0 {
			a.signals.SnapshotAll(passCtx, a.cfg.File.Watchlist)
		}
		span.End()
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return a.db.Migrate(a.cfg.Database.MigrationsDir)
			})
		},
	}
}

func importPendingCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "import-pending",
		Short: "Match a user's pending executions into the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				res, err := a.importer.ImportPending(ctx, userID)
				if res != nil {
					if perr := printJSON(res); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func checkAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-alerts",
		Short: "Run one alert evaluation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				res, err := a.alerts.Run(ctx)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
}

func syncBrokerCmd() *cobra.Command {
	var userID string
	var importNow bool

	cmd := &cobra.Command{
		Use:   "sync-broker",
		Short: "Pull trades and holdings from Kite into the execution inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if a.broker == nil {
					return errors.New("kite credentials are not configured")
				}
				res, err := a.broker.Sync(ctx, userID)
				if err != nil {
					return err
				}
				if err := printJSON(res); err != nil {
					return err
				}
				if !importNow {
					return nil
				}
				imported, err := a.importer.ImportPending(ctx, userID)
				if imported != nil {
					if perr := printJSON(imported); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().BoolVar(&importNow, "import", true, "Import pending executions after syncing")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func signalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signals [symbol...]",
		Short: "Print stage and flag snapshots, defaulting to the configured watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				symbols := args
				if len(symbols) == 0 {
					symbols = a.cfg.File.Watchlist
				}
				if len(symbols) == 0 {
					return errors.New("no symbols given and no watchlist configured")
				}
				return printJSON(a.signals.SnapshotAll(ctx, symbols))
			})
		},
	}
}

func prunePricesCmd() *cobra.Command {
	var keepDays int

	cmd := &cobra.Command{
		Use:   "prune-prices",
		Short: "Delete archived daily prices older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				cutoff := time.Now().AddDate(0, 0, -keepDays)
				n, err := a.db.DeletePriceDataOlderThan(cutoff)
				if err != nil {
					return err
				}
				a.logger.Info("pruned archived prices", zap.Int64("rows", n), zap.Time("before", cutoff))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keepDays, "keep-days", 730, "Days of history to keep")
	return cmd
}
