package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cyclescan/internal/alerting"
	"cyclescan/internal/config"
	"cyclescan/internal/cycle"
	"cyclescan/internal/portfolio"
	"cyclescan/internal/registry"
	"cyclescan/internal/scheduler"
	"cyclescan/internal/seasonality"
	"cyclescan/internal/storage"
)

// Service orchestrates batch scans, persistence, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	registry  *registry.Registry
	scanner   *portfolio.Scanner
	store     storage.ScanStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	provider  string
	batchSize int
	topN      int
	alertsOn  bool
	locker    storage.AdvisoryLocker
	lockKey   int64
	now       func() time.Time
}

// New constructs the scan service. store and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, reg *registry.Registry, scanner *portfolio.Scanner, store storage.ScanStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		registry:  reg,
		scanner:   scanner,
		store:     store,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		provider:  cfg.Provider.Kind,
		batchSize: cfg.Registry.BatchSize,
		topN:      cfg.Alerting.TopN,
		alertsOn:  cfg.Alerting.Enabled,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		now:       time.Now,
	}
}

// Run begins the cron-driven scan loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ScanAll)
}

// ScanAll 依次扫描注册表中的全部批次。
func (s *Service) ScanAll(ctx context.Context, at time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("at", at).Msg("skip scan because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	batches := s.registry.BatchCount(s.batchSize)
	for n := 1; n <= batches; n++ {
		if _, err := s.ScanBatch(ctx, n); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Error().Err(err).Int("batch", n).Msg("batch scan failed")
		}
	}
	return nil
}

// ScanBatch scans one 1-based registry batch, then persists and announces it.
func (s *Service) ScanBatch(ctx context.Context, batch int) (portfolio.Report, error) {
	instruments, err := s.registry.Batch(batch, s.batchSize)
	if err != nil {
		return portfolio.Report{}, err
	}
	return s.ScanInstruments(ctx, batch, instruments)
}

// ScanInstruments runs a portfolio scan over instruments. A cancelled scan
// returns its partial report unsaved.
func (s *Service) ScanInstruments(ctx context.Context, batch int, instruments []registry.Instrument) (portfolio.Report, error) {
	started := s.now()
	report, err := s.scanner.Scan(ctx, instruments)
	if err != nil {
		return report, fmt.Errorf("scan batch %d: %w", batch, err)
	}
	finished := s.now()

	peak, _ := report.PeakMonth()
	s.logger.Info().Int("batch", batch).
		Int("instruments", report.Scanned).
		Int("rows", len(report.Rows)).
		Int("cycles", report.TotalCycles()).
		Str("peak_month", cycle.ShortMonthName(peak)).
		Dur("elapsed", finished.Sub(started)).
		Msg("batch scanned")

	run := BuildRun(report, batch, s.provider, started, finished)
	if s.store != nil {
		saved, err := s.store.SaveRun(ctx, run)
		if err != nil {
			s.logger.Error().Err(err).Int("batch", batch).Msg("failed to persist scan run")
		} else {
			run = saved
		}
	}

	if s.alertsOn && s.notifier != nil {
		note := alerting.FromReport(report, batch, finished, s.topN)
		note.PValue = run.PValue
		// only persisted runs have an ID worth quoting
		if !run.CreatedAt.IsZero() {
			note.RunID = run.ID.String()
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Int("batch", batch).Msg("failed to dispatch scan summary")
		}
	}

	return report, nil
}

// BuildRun converts a report into its storage form, including the portfolio
// seasonality statistics when any cycles were found.
func BuildRun(report portfolio.Report, batch int, provider string, started, finished time.Time) storage.ScanRun {
	peak, _ := report.PeakMonth()
	run := storage.ScanRun{
		Batch:        batch,
		Provider:     provider,
		ThresholdPct: report.Threshold,
		Scanned:      report.Scanned,
		Skipped:      len(report.Skipped),
		TotalCycles:  report.TotalCycles(),
		PeakMonth:    int(peak),
		StartedAt:    started,
		FinishedAt:   finished,
		Rows:         make([]storage.ScanRow, 0, len(report.Rows)),
	}

	if result, err := seasonality.Analyze(report.AllCycles()); err == nil {
		chi, p := result.ChiSquare, result.PValue
		run.ChiSquare = &chi
		run.PValue = &p
	}

	for _, row := range report.Rows {
		stored := storage.ScanRow{
			Instrument:   row.Instrument,
			CycleCount:   row.CycleCount,
			AvgReturnPct: row.AvgReturnPct,
			PeakMonth:    int(row.PeakMonth),
			Cycles:       make([]storage.CycleRecord, len(row.Cycles)),
		}
		for i, c := range row.Cycles {
			stored.Cycles[i] = storage.CycleRecord{
				Instrument:   row.Instrument,
				StartDate:    c.StartDate,
				EndDate:      c.EndDate,
				StartClose:   c.StartClose,
				EndClose:     c.EndClose,
				DurationDays: c.DurationDays,
				ReturnPct:    c.ReturnPct,
			}
		}
		run.Rows = append(run.Rows, stored)
	}
	return run
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
