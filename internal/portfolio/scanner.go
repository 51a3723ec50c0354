package portfolio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cyclescan/internal/cycle"
	"cyclescan/internal/fetcher"
	"cyclescan/internal/registry"
)

// ProgressFunc is told how many instruments have finished out of total.
type ProgressFunc func(done, total int)

// ScannerOptions tune a portfolio scan.
type ScannerOptions struct {
	Threshold decimal.Decimal
	From      time.Time
	To        time.Time
	Workers   int
	// Delay is the minimum spacing between provider calls; zero disables pacing.
	Delay    time.Duration
	Burst    int
	Progress ProgressFunc
}

// Scanner fetches instruments from a provider and aggregates their cycles.
type Scanner struct {
	provider fetcher.SeriesProvider
	detector *cycle.Detector
	limiter  *rate.Limiter
	opts     ScannerOptions
	logger   zerolog.Logger
}

// NewScanner wires a provider and detector into a paced scanner.
func NewScanner(provider fetcher.SeriesProvider, detector *cycle.Detector, opts ScannerOptions, logger zerolog.Logger) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Scanner{
		provider: provider,
		detector: detector,
		limiter:  rate.NewLimiter(limit, opts.Burst),
		opts:     opts,
		logger:   logger.With().Str("component", "portfolio_scanner").Logger(),
	}
}

// Threshold returns the configured return threshold.
func (s *Scanner) Threshold() decimal.Decimal {
	return s.opts.Threshold
}

// Fetch retrieves the series for one instrument, honouring the pacing limiter.
// The returned series carries the display symbol as its instrument.
func (s *Scanner) Fetch(ctx context.Context, inst registry.Instrument) (cycle.Series, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return cycle.Series{}, err
	}

	to := s.opts.To
	if to.IsZero() {
		to = time.Now()
	}
	series, err := s.provider.FetchSeries(ctx, inst.Token, s.opts.From, to)
	if err != nil {
		return cycle.Series{}, err
	}
	series.Instrument = inst.Symbol
	return series, nil
}

// Detect runs the scanner's detector with the configured threshold.
func (s *Scanner) Detect(series cycle.Series) []cycle.Cycle {
	return s.detector.Detect(series, s.opts.Threshold)
}

// Scan processes instruments and returns the aggregated report. Failures for a
// single instrument are logged and skipped. When ctx is cancelled no further
// instruments are started; the report covers those already finished and the
// context error is returned alongside it.
func (s *Scanner) Scan(ctx context.Context, instruments []registry.Instrument) (Report, error) {
	outcomes := make([]outcome, len(instruments))
	finished := make([]bool, len(instruments))

	var (
		mu   sync.Mutex
		done int
	)
	markDone := func(i int) {
		mu.Lock()
		defer mu.Unlock()
		finished[i] = true
		done++
		if s.opts.Progress != nil {
			s.opts.Progress(done, len(instruments))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, inst := range instruments {
		if gctx.Err() != nil {
			break
		}
		i, inst := i, inst
		g.Go(func() error {
			series, err := s.Fetch(gctx, inst)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn().Err(err).Str("symbol", inst.Symbol).Msg("instrument skipped")
				outcomes[i] = outcome{instrument: inst.Symbol, unavailable: true}
				markDone(i)
				return nil
			}

			cycles := s.Detect(series)
			s.logger.Debug().Str("symbol", inst.Symbol).
				Int("observations", series.Len()).
				Int("cycles", len(cycles)).
				Msg("instrument scanned")
			outcomes[i] = outcome{instrument: inst.Symbol, cycles: cycles}
			markDone(i)
			return nil
		})
	}

	waitErr := g.Wait()

	completed := make([]outcome, 0, len(outcomes))
	for i, o := range outcomes {
		if finished[i] {
			completed = append(completed, o)
		}
	}
	report := reduce(completed, s.opts.Threshold)

	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, context.DeadlineExceeded) {
		return report, waitErr
	}
	if waitErr != nil {
		s.logger.Warn().Int("completed", len(completed)).Int("total", len(instruments)).Msg("scan interrupted")
	}
	return report, waitErr
}
