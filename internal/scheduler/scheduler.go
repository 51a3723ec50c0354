package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked on every scheduled fire.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Spec is a standard five-field cron expression or descriptor such as "@daily".
	Spec       string
	Location   *time.Location
	RunOnStart bool
}

// Scheduler drives cron-timed execution of scan jobs.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	logger   zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	schedule, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", opts.Spec, err)
	}
	return &Scheduler{
		opts:     opts,
		schedule: schedule,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Next returns the first fire time after t in the scheduler's location.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.opts.Location))
}

// Run blocks, invoking tick on every fire until ctx is cancelled. A fire that
// arrives while the previous tick is still running is skipped.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.execute(ctx, tick, time.Now().In(s.opts.Location))
	}))

	if s.opts.RunOnStart {
		s.execute(ctx, tick, time.Now().In(s.opts.Location))
	}

	c.Start()
	s.logger.Info().Str("spec", s.opts.Spec).Time("next", s.Next(time.Now())).Msg("scheduler started")

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, at time.Time) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info().Time("at", at).Msg("executing scheduled tick")
	if err := tick(ctx, at); err != nil {
		s.logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
