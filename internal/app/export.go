package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cyclescan/internal/cycle"
	"cyclescan/internal/storage"
)

// Export renders the cycles of a persisted run as CSV and/or a month histogram PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = a.Config.Export.MaxCycles
	}
	opts.CSVPath = a.exportPath(opts.CSVPath)
	opts.PNGPath = a.exportPath(opts.PNGPath)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	runID, err := a.resolveRunID(ctx, store, opts.RunID)
	if err != nil {
		return err
	}

	cycles, err := store.ListRunCycles(ctx, runID, opts.MaxCycles)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		a.Logger.Info().Str("run_id", runID.String()).Msg("run has no cycles to export")
		return nil
	}
	a.Logger.Info().Str("run_id", runID.String()).Int("cycles", len(cycles)).Msg("exporting cycles")
	if len(cycles) == opts.MaxCycles {
		a.Logger.Warn().Int("max_cycles", opts.MaxCycles).Msg("cycle list truncated; CSV may be incomplete")
	}

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, cycles); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		// 直方图按全部周期统计, 不受 max-cycles 截断影响
		dist, err := store.RunStartMonths(ctx, runID)
		if err != nil {
			return err
		}
		title := fmt.Sprintf("Month Distribution (run %s)", runID.String()[:8])
		if err := writeMonthHistogram(opts.PNGPath, title, dist); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) resolveRunID(ctx context.Context, store *storage.Store, raw string) (uuid.UUID, error) {
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --run value: %w", err)
		}
		return id, nil
	}

	runs, err := store.ListRecentRuns(ctx, 1)
	if err != nil {
		return uuid.Nil, err
	}
	if len(runs) == 0 {
		return uuid.Nil, storage.ErrNoRuns
	}
	return runs[0].ID, nil
}

func writeRecordsCSV(path string, cycles []storage.CycleRecord) error {
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
			c.Instrument,
			c.StartDate.Format(time.DateOnly),
			c.EndDate.Format(time.DateOnly),
			c.StartClose.String(),
			c.EndClose.String(),
			fmt.Sprint(c.DurationDays),
			c.ReturnPct.StringFixed(2),
			cycle.ShortMonthName(c.StartDate.Month()),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// exportPath places relative output paths under export.dir.
func (a *App) exportPath(path string) string {
	dir := a.Config.Export.Dir
	if path == "" || filepath.IsAbs(path) || dir == "" || dir == "." {
		return path
	}
	return filepath.Join(dir, path)
}
