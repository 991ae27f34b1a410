package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crm-alerts/internal/alerting"
	"crm-alerts/internal/config"
	"crm-alerts/internal/engine"
	"crm-alerts/internal/fetcher"
	"crm-alerts/internal/ratelimit"
	"crm-alerts/internal/scheduler"
	"crm-alerts/internal/service"
	"crm-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() (fetcher.OpportunityFetcher, error) {
	if a.Config.CRM.OpportunitiesFile != "" {
		return fetcher.NewFile(a.Config.CRM.OpportunitiesFile, a.Logger), nil
	}
	if a.Config.CRM.FeedURL != "" {
		return fetcher.NewHTTP(fetcher.HTTPOptions{
			FeedURL:   a.Config.CRM.FeedURL,
			APIToken:  a.Config.CRM.APIToken,
			Timeout:   a.Config.CRM.RequestTimeout,
			UserAgent: a.Config.CRM.UserAgent,
		}, a.Logger), nil
	}
	return nil, errors.New("no opportunity source configured; set crm.feed_url or crm.opportunities_file")
}

func (a *App) newSink() alerting.Sink {
	sinks := alerting.MultiSink{alerting.NewLogSink(a.Logger)}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		sinks = append(sinks, alerting.NewTelegramSink(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	return sinks
}

func (a *App) engineConfig() engine.Config {
	return engine.Config{
		MinInterval:           a.Config.Engine.MinInterval,
		MaxAlerts:             a.Config.Engine.MaxAlerts,
		MaxDealRiskCandidates: a.Config.Engine.MaxDealRiskCandidates,
		MaxPassesPerWindow:    a.Config.RateLimit.MaxPerWindow,
		RevenueMilestones:     a.Config.Engine.RevenueMilestones,
		RevenueTarget:         a.Config.Engine.RevenueTarget,
		TargetStepsPct:        a.Config.Engine.TargetStepsPct,
		MaterialityFloor:      a.Config.Engine.MaterialityFloor,
		RiskWindowDays:        a.Config.Engine.RiskWindowDays,
		RiskStages:            a.Config.Engine.RiskStages,
	}
}

func (a *App) newEngine(cfg engine.Config, kv storage.KV) *engine.Engine {
	limiter := ratelimit.NewWindowed(a.Config.RateLimit.Window)
	return engine.New(cfg, kv, limiter, a.newSink(), a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var kv storage.KV
	var snapshots storage.SnapshotStore
	var locker storage.AdvisoryLocker
	if store != nil {
		kv = store
		snapshots = store
		locker = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; alert state will not survive restarts")
		kv = storage.NewMemoryKV()
	}

	f, err := a.newFetcher()
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, f, a.newEngine(a.engineConfig(), kv), snapshots, locker, a.Logger)

	a.Logger.Info().Msg("starting watcher service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher service stopped")
	return nil
}

// CheckOptions configure a one-shot evaluation pass.
type CheckOptions struct {
	File  string
	Force bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting historical snapshots.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// PruneOptions configure snapshot retention cleanup.
type PruneOptions struct {
	KeepDays int
}
