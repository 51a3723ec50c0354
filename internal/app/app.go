package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cyclescan/internal/alerting"
	"cyclescan/internal/config"
	"cyclescan/internal/cycle"
	"cyclescan/internal/fetcher"
	"cyclescan/internal/portfolio"
	"cyclescan/internal/registry"
	"cyclescan/internal/scheduler"
	"cyclescan/internal/service"
	"cyclescan/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	provider fetcher.SeriesProvider
	now      func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
		now:    time.Now,
	}
}

// WithProvider overrides the configured price provider.
func (a *App) WithProvider(p fetcher.SeriesProvider) *App {
	a.provider = p
	return a
}

func (a *App) newProvider() (fetcher.SeriesProvider, error) {
	if a.provider != nil {
		return a.provider, nil
	}

	switch a.Config.Provider.Kind {
	case config.ProviderSmartAPI:
		cfg := a.Config.SmartAPI
		session := &fetcher.Session{APIKey: cfg.APIKey, ClientCode: cfg.ClientCode, JWTToken: cfg.JWTToken}
		if !session.Valid() {
			return nil, errors.New("smartapi.api_key and smartapi.jwt_token must be set (session is issued outside cyclescan)")
		}
		return fetcher.NewSmartAPI(fetcher.SmartAPIOptions{
			BaseURL:   cfg.BaseURL,
			Exchange:  cfg.Exchange,
			Interval:  cfg.Interval,
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
		}, session, a.Logger), nil
	case config.ProviderAlpaca:
		cfg := a.Config.Alpaca
		return fetcher.NewAlpaca(fetcher.AlpacaOptions{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    cfg.BaseURL,
			Feed:       cfg.Feed,
			Adjustment: cfg.Adjustment,
		}, a.Logger), nil
	case config.ProviderCSV:
		return fetcher.NewCSVDir(a.Config.CSV.Dir), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", a.Config.Provider.Kind)
	}
}

func (a *App) newDetector() *cycle.Detector {
	return cycle.NewDetector(cycle.DetectorOptions{
		MinDays:   a.Config.Scan.MinDays,
		MaxDays:   a.Config.Scan.MaxDays,
		Lookahead: a.Config.Scan.Lookahead,
	})
}

func (a *App) newScanner(threshold *float64, progress portfolio.ProgressFunc) (*portfolio.Scanner, error) {
	provider, err := a.newProvider()
	if err != nil {
		return nil, err
	}
	return portfolio.NewScanner(provider, a.newDetector(), portfolio.ScannerOptions{
		Threshold: a.Config.ResolveThreshold(threshold),
		From:      a.Config.Provider.HistoryFrom,
		Workers:   a.Config.Scan.Workers,
		Delay:     a.Config.Pacing.Delay,
		Burst:     a.Config.Pacing.Burst,
		Progress:  progress,
	}, a.Logger), nil
}

func (a *App) loadRegistry() (*registry.Registry, error) {
	reg, err := registry.Load(a.Config.Registry.Path)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("registry %s has no instruments", a.Config.Registry.Path)
	}
	return reg, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database)
	if errors.Is(err, storage.ErrNotConfigured) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newService wires the scan pipeline; store and notifier may be nil.
func (a *App) newService(cfg *config.Config, sched *scheduler.Scheduler, scanner *portfolio.Scanner, reg *registry.Registry, store *storage.Store, notifier alerting.Notifier) *service.Service {
	var scanStore storage.ScanStore
	if store != nil {
		scanStore = store
	}
	return service.New(cfg, sched, reg, scanner, scanStore, notifier, a.Logger)
}

// Run executes the long-running scheduled scan service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched, err := scheduler.New(scheduler.Options{
		Spec:       a.Config.Scheduler.Cron,
		Location:   a.Config.Location(),
		RunOnStart: a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	scanner, err := a.newScanner(nil, nil)
	if err != nil {
		return err
	}

	svc := a.newService(a.Config, sched, scanner, reg, store, a.newNotifier())

	a.Logger.Info().Int("instruments", reg.Len()).Str("cron", a.Config.Scheduler.Cron).Msg("starting scan service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("scan service stopped")
	return nil
}

// ScanOptions configure the scan command.
type ScanOptions struct {
	Batch     int
	All       bool
	// Threshold overrides scan.threshold_pct when non-nil.
	Threshold *float64
	PNGPath   string
	Save      bool
	Notify    bool
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	Symbol string
	// Token bypasses the registry lookup when set.
	Token     string
	Threshold *float64
	CSVPath   string
	PricePNG  string
	MonthPNG  string
}

// ExportOptions hold parameters for exporting a persisted run.
type ExportOptions struct {
	RunID     string
	PNGPath   string
	CSVPath   string
	MaxCycles int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Latest bool
}
