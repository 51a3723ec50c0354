package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"cyclescan/internal/cycle"
	"cyclescan/internal/fetcher"
	"cyclescan/internal/registry"
	"cyclescan/internal/seasonality"
)

// Analyze runs the single-instrument deep analysis: cycles, seasonality test,
// next-cycle projection, and optional CSV/PNG artefacts.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	inst := registry.Instrument{Symbol: opts.Symbol, Token: opts.Token}
	if inst.Token == "" {
		reg, err := a.loadRegistry()
		if err != nil {
			return err
		}
		if inst.Token, err = reg.Token(opts.Symbol); err != nil {
			return err
		}
	}
	if inst.Symbol == "" {
		inst.Symbol = inst.Token
	}

	scanner, err := a.newScanner(opts.Threshold, nil)
	if err != nil {
		return err
	}

	series, err := scanner.Fetch(ctx, inst)
	if errors.Is(err, fetcher.ErrDataUnavailable) {
		a.Logger.Warn().Err(err).Str("symbol", inst.Symbol).Msg("fetch failed")
		fmt.Fprintln(a.Out, "Data not available")
		return nil
	}
	if err != nil {
		return err
	}

	cycles := scanner.Detect(series)
	fmt.Fprintf(a.Out, "%s  threshold %s%%  observations %d\n", inst.Symbol, scanner.Threshold().String(), series.Len())
	if len(cycles) == 0 {
		fmt.Fprintln(a.Out, "No cycles found")
		return nil
	}

	result, err := seasonality.Analyze(cycles)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Total Cycles: %d\nChi-Square: %.2f\nP-Value: %.4f\n", result.Total, result.ChiSquare, result.PValue)
	if result.Significant(a.Config.Scan.Significance) {
		fmt.Fprintln(a.Out, "Seasonality statistically significant")
	} else {
		fmt.Fprintln(a.Out, "Seasonality not statistically significant")
	}
	if next, ok := seasonality.PredictNext(cycles, a.now()); ok {
		fmt.Fprintf(a.Out, "Next likely cycle month: %s\n", next.Format(time.DateOnly))
	}
	fmt.Fprintln(a.Out)
	printCycles(a.Out, cycles)
	printDistribution(a.Out, result.Distribution)

	if opts.CSVPath != "" {
		if err := writeCyclesCSV(opts.CSVPath, inst.Symbol, cycles); err != nil {
			return err
		}
	}
	if opts.PricePNG != "" {
		if err := writePriceChart(opts.PricePNG, series, cycles); err != nil {
			return err
		}
	}
	if opts.MonthPNG != "" {
		if err := writeMonthHistogram(opts.MonthPNG, inst.Symbol+" cycle start months", result.Distribution); err != nil {
			return err
		}
	}
	return nil
}

func printCycles(w io.Writer, cycles []cycle.Cycle) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Start Date\tEnd Date\tStart Close\tEnd Close\tDays\tReturn %")
	for _, c := range cycles {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\t%s\n",
			c.StartDate.Format(time.DateOnly),
			c.EndDate.Format(time.DateOnly),
			formatDecimal(c.StartClose, 2),
			formatDecimal(c.EndClose, 2),
			c.DurationDays,
			formatDecimal(c.ReturnPct, 2),
		)
	}
	writer.Flush()
}

func writeCyclesCSV(path, instrument string, cycles []cycle.Cycle) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"instrument", "start_date", "end_date", "start_close", "end_close", "duration_days", "return_pct", "start_month"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range cycles {
		record := []string{
			instrument,
			c.StartDate.Format(time.DateOnly),
			c.EndDate.Format(time.DateOnly),
			c.StartClose.String(),
			c.EndClose.String(),
			fmt.Sprint(c.DurationDays),
			c.ReturnPct.StringFixed(2),
			cycle.ShortMonthName(c.StartMonth()),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
