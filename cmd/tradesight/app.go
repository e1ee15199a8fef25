package main

import (
	"context"
	"fmt"
	"strings"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"go.uber.org/zap"

	"github.com/trogers1052/trade-journal/internal/alerts"
	"github.com/trogers1052/trade-journal/internal/analysis"
	"github.com/trogers1052/trade-journal/internal/behavior"
	"github.com/trogers1052/trade-journal/internal/broker"
	"github.com/trogers1052/trade-journal/internal/config"
	"github.com/trogers1052/trade-journal/internal/database"
	"github.com/trogers1052/trade-journal/internal/kafka"
	"github.com/trogers1052/trade-journal/internal/logging"
	"github.com/trogers1052/trade-journal/internal/matcher"
	"github.com/trogers1052/trade-journal/internal/provider"
	"github.com/trogers1052/trade-journal/internal/simulator"
	"github.com/trogers1052/trade-journal/internal/telemetry"
)

// app holds every wired component. Optional parts are nil when not configured.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB

	kite     *kiteconnect.Client
	prices   provider.PriceSeriesProvider
	importer *matcher.Importer
	signals  *analysis.Service
	behavior *behavior.Analyzer
	paths    *simulator.PathSimulator
	alerts   *alerts.Evaluator
	producer *kafka.Producer
	broker   *broker.KiteSync

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if err := telemetry.Init(cfg.Telemetry.Enabled, cfg.Telemetry.Version); err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db}
	a.closers = append(a.closers, db.Close)

	if cfg.Kite.Enabled() {
		a.kite = provider.NewKiteClient(cfg.Kite.APIKey, cfg.Kite.AccessToken)
	}

	if err := a.buildPrices(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.importer = matcher.NewImporter(db, db, cfg.Import.BatchSize, logger)

	a.signals = analysis.NewService(a.prices, analysis.Config{
		LookbackDays: cfg.Analysis.LookbackDays,
		FetchTimeout: cfg.Analysis.FetchTimeout,
		Concurrency:  cfg.Analysis.Concurrency,
	}, logger)
	a.signals.SetRecorder(db)

	sectors := behavior.DefaultSectors().Merge(cfg.File.Sectors)
	a.behavior = behavior.NewAnalyzer(a.prices, sectors, cfg.Analysis.FetchTimeout, cfg.Analysis.Concurrency, logger)
	a.paths = simulator.NewPathSimulator(a.prices, cfg.Analysis.FetchTimeout, cfg.Analysis.Concurrency, logger)

	a.alerts = alerts.NewEvaluator(db, a.signals, a.notifier(), logger)
	if cfg.Analysis.LiveQuotes {
		a.alerts.SetQuoteSource(a.prices)
	}

	if a.kite != nil {
		a.broker = broker.NewKiteSync(a.kite, db, db, logger)
	}

	return a, nil
}

// buildPrices assembles source -> symbol normalization -> archive -> redis cache.
func (a *app) buildPrices(ctx context.Context) error {
	cfg := a.cfg

	var p provider.PriceSeriesProvider
	switch strings.ToLower(cfg.Provider.Name) {
	case "kite":
		p = provider.NewKite(a.kite, cfg.Kite.Exchange)
	default:
		p = provider.NewNormalizing(provider.NewYahoo(cfg.Provider.YahooBaseURL, cfg.Provider.Timeout), cfg.Provider.SymbolSuffix)
	}

	if cfg.Provider.Archive {
		p = provider.NewArchive(p, a.db, a.logger)
	}

	if cfg.Redis.Addr != "" {
		client, err := provider.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.logger.Warn("redis unavailable, price cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			a.closers = append(a.closers, client.Close)
			p = provider.NewCached(p, client, cfg.Redis.SeriesTTL, cfg.Redis.QuoteTTL, a.logger)
		}
	}

	a.prices = p
	return nil
}

func (a *app) notifier() alerts.Notifier {
	cfg := a.cfg
	notifiers := alerts.MultiNotifier{}

	smtp := alerts.SMTPConfig{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		DefaultTo:  cfg.SMTP.DefaultTo,
		Recipients: cfg.File.Recipients,
	}
	if smtp.Enabled() {
		notifiers = append(notifiers, alerts.NewEmailNotifier(smtp, a.logger))
	}

	if cfg.Kafka.Enabled() && cfg.Kafka.AlertsTopic != "" {
		a.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
		a.closers = append(a.closers, a.producer.Close)
		notifiers = append(notifiers, a.producer)
	}

	if len(notifiers) == 0 {
		return alerts.LogNotifier{Logger: a.logger.Named("alerts")}
	}
	return notifiers
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown error", zap.Error(err))
		}
	}
	if err := telemetry.Shutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown error", zap.Error(err))
	}
	_ = a.logger.Sync()
}
