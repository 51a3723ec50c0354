package app

import (
	"context"
	"errors"
	"time"

	"cyclescan/internal/alerting"
	"cyclescan/internal/storage"
)

// NotifyLatest 将最近一次持久化的扫描摘要重新推送到已配置的告警通道。
func (a *App) NotifyLatest(ctx context.Context) error {
	if !a.Config.Alerting.Telegram.Enabled {
		return errors.New("未配置任何告警通道")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; no run to announce")
	}
	if closeStore != nil {
		defer closeStore()
	}

	run, err := store.LatestRun(ctx)
	if err != nil {
		return err
	}
	return a.newNotifier().Notify(ctx, notificationFromRun(run, a.Config.Alerting.TopN))
}

// notificationFromRun rebuilds a summary from a stored run. Rows are already
// persisted in report order; ranking follows FromReport.
func notificationFromRun(run storage.ScanRun, topN int) alerting.Notification {
	note := alerting.Notification{
		RunID:        run.ID.String(),
		Batch:        run.Batch,
		At:           run.FinishedAt,
		ThresholdPct: run.ThresholdPct,
		Scanned:      run.Scanned,
		Skipped:      run.Skipped,
		TotalCycles:  run.TotalCycles,
		PeakMonth:    time.Month(run.PeakMonth),
		HasPeak:      run.PeakMonth >= 1 && run.PeakMonth <= 12,
		PValue:       run.PValue,
	}

	entries := make([]alerting.Entry, len(run.Rows))
	for i, row := range run.Rows {
		entries[i] = alerting.Entry{
			Instrument:   row.Instrument,
			CycleCount:   row.CycleCount,
			AvgReturnPct: row.AvgReturnPct,
			PeakMonth:    time.Month(row.PeakMonth),
		}
	}
	note.Top = alerting.Rank(entries, topN)
	return note
}
