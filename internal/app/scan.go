package app

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"cyclescan/internal/alerting"
	"cyclescan/internal/cycle"
	"cyclescan/internal/portfolio"
	"cyclescan/internal/storage"
)

// Scan runs a portfolio scan over one registry batch, or every batch with All.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	// Ctrl-C 时仍打印已完成部分
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}

	size := a.Config.Registry.BatchSize
	count := reg.BatchCount(size)
	batches := []int{opts.Batch}
	if opts.All {
		batches = make([]int, 0, count)
		for n := 1; n <= count; n++ {
			batches = append(batches, n)
		}
	} else if opts.Batch < 1 || opts.Batch > count {
		return fmt.Errorf("--batch must be within 1-%d", count)
	}

	progress := func(done, total int) {
		a.Logger.Debug().Int("done", done).Int("total", total).Msg("scan progress")
	}
	scanner, err := a.newScanner(opts.Threshold, progress)
	if err != nil {
		return err
	}

	cfg := *a.Config
	cfg.Alerting.Enabled = opts.Notify

	var store *storage.Store
	if opts.Save {
		opened, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if opened == nil {
			a.Logger.Warn().Msg("database.dsn not configured; --save ignored")
		}
		if closeStore != nil {
			defer closeStore()
		}
		store = opened
	}

	var notifier alerting.Notifier
	if opts.Notify {
		notifier = a.newNotifier()
	}

	svc := a.newService(&cfg, nil, scanner, reg, store, notifier)

	var overall cycle.MonthDistribution
	for _, n := range batches {
		report, err := svc.ScanBatch(ctx, n)
		printReport(a.Out, n, count, report)
		overall.Merge(report.Distribution)
		if err != nil {
			return err
		}
	}

	if opts.All && len(batches) > 1 {
		if peak, ok := overall.Peak(); ok {
			fmt.Fprintf(a.Out, "\nStrongest month across all batches: %s (%d cycles)\n", cycle.ShortMonthName(peak), overall.Total())
		}
	}

	if opts.PNGPath != "" {
		if overall.Total() == 0 {
			a.Logger.Info().Msg("no cycles found; histogram not written")
			return nil
		}
		if err := writeMonthHistogram(opts.PNGPath, "Overall Month Distribution (All Stocks)", overall); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("month histogram written")
	}
	return nil
}

func printReport(w io.Writer, batch, batches int, report portfolio.Report) {
	fmt.Fprintf(w, "Batch %d/%d  threshold %s%%  instruments %d\n", batch, batches, report.Threshold.String(), report.Scanned)

	peak, ok := report.PeakMonth()
	if !ok {
		fmt.Fprintln(w, "No cycles found")
		printSkipped(w, report.Skipped)
		return
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tCycle Count\tAvg Return %\tPeak Month")
	for _, row := range report.Rows {
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\n",
			row.Instrument,
			row.CycleCount,
			formatDecimal(row.AvgReturnPct, 2),
			cycle.ShortMonthName(row.PeakMonth),
		)
	}
	writer.Flush()

	fmt.Fprintf(w, "Strongest month overall: %s\n", cycle.ShortMonthName(peak))
	printDistribution(w, report.Distribution)
	printSkipped(w, report.Skipped)
}

func printDistribution(w io.Writer, dist cycle.MonthDistribution) {
	parts := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		parts = append(parts, fmt.Sprintf("%s=%d", cycle.ShortMonthName(m), dist.Count(m)))
	}
	fmt.Fprintf(w, "Month distribution: %s\n", strings.Join(parts, " "))
}

func printSkipped(w io.Writer, skipped []portfolio.Skip) {
	if len(skipped) == 0 {
		return
	}
	parts := make([]string, len(skipped))
	for i, s := range skipped {
		parts[i] = fmt.Sprintf("%s (%s)", s.Instrument, s.Reason)
	}
	fmt.Fprintf(w, "Skipped: %s\n", strings.Join(parts, ", "))
}
