package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"cyclescan/internal/cycle"
	"cyclescan/internal/storage"
)

// Show prints recent scan runs, or the rows of the latest run.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show scan runs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Latest {
		run, err := store.LatestRun(ctx)
		if errors.Is(err, storage.ErrNoRuns) {
			fmt.Fprintln(a.Out, "no scan runs found")
			return nil
		}
		if err != nil {
			return err
		}
		a.printRun(run)
		return nil
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.Out, "no scan runs found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run\tFinished (UTC)\tBatch\tProvider\tThreshold%\tScanned\tSkipped\tCycles\tPeak\tp-value")
	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			run.ID.String(),
			run.FinishedAt.UTC().Format(time.RFC3339),
			run.Batch,
			run.Provider,
			run.ThresholdPct.String(),
			run.Scanned,
			run.Skipped,
			run.TotalCycles,
			cycle.ShortMonthName(time.Month(run.PeakMonth)),
			formatOptional(run.PValue, "%.4f"),
		)
	}

	writer.Flush()
	return nil
}

func (a *App) printRun(run storage.ScanRun) {
	fmt.Fprintf(a.Out, "Run %s  batch %d  provider %s  threshold %s%%\n", run.ID, run.Batch, run.Provider, run.ThresholdPct.String())
	fmt.Fprintf(a.Out, "Finished %s  scanned %d  skipped %d  cycles %d\n",
		run.FinishedAt.UTC().Format(time.RFC3339), run.Scanned, run.Skipped, run.TotalCycles)
	if len(run.Rows) == 0 {
		fmt.Fprintln(a.Out, "No cycles found")
		return
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tCycle Count\tAvg Return %\tPeak Month")
	for _, row := range run.Rows {
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\n",
			sanitizeInline(row.Instrument),
			row.CycleCount,
			formatDecimal(row.AvgReturnPct, 2),
			cycle.ShortMonthName(time.Month(row.PeakMonth)),
		)
	}
	writer.Flush()

	fmt.Fprintf(a.Out, "Strongest month overall: %s  chi-square %s  p-value %s\n",
		cycle.ShortMonthName(time.Month(run.PeakMonth)),
		formatOptional(run.ChiSquare, "%.2f"),
		formatOptional(run.PValue, "%.4f"))
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
