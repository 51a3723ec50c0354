package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"cyclescan/internal/cycle"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNoRuns is returned when no scan run has been persisted yet.
	ErrNoRuns = errors.New("storage: no scan runs")
)

//go:embed schema.sql
var schemaSQL string

const (
	insertRunSQL = `INSERT INTO scan_runs (
        id,
        batch,
        provider,
        threshold_pct,
        scanned,
        skipped,
        total_cycles,
        peak_month,
        chi_square,
        p_value,
        started_at,
        finished_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    RETURNING created_at;`

	insertRowSQL = `INSERT INTO scan_rows (
        run_id,
        position,
        instrument,
        cycle_count,
        avg_return_pct,
        peak_month
    ) VALUES ($1,$2,$3,$4,$5,$6);`

	insertCycleSQL = `INSERT INTO scan_cycles (
        run_id,
        instrument,
        start_date,
        end_date,
        start_close,
        end_close,
        duration_days,
        return_pct
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	listRecentRunsSQL = `SELECT
        id,
        batch,
        provider,
        threshold_pct::text,
        scanned,
        skipped,
        total_cycles,
        peak_month,
        chi_square,
        p_value,
        started_at,
        finished_at,
        created_at
    FROM scan_runs
    ORDER BY created_at DESC
    LIMIT $1;`

	listRunRowsSQL = `SELECT
        instrument,
        cycle_count,
        avg_return_pct::text,
        peak_month
    FROM scan_rows
    WHERE run_id = $1
    ORDER BY position;`

	listRunCyclesSQL = `SELECT
        instrument,
        start_date,
        end_date,
        start_close::text,
        end_close::text,
        duration_days,
        return_pct::text
    FROM scan_cycles
    WHERE run_id = $1
    ORDER BY instrument, start_date
    LIMIT $2;`

	runStartMonthsSQL = `SELECT
        EXTRACT(MONTH FROM start_date)::int AS month,
        COUNT(*)::int
    FROM scan_cycles
    WHERE run_id = $1
    GROUP BY 1
    ORDER BY 1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_xact_lock($1);`
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ScanStore defines persistence of scan runs.
type ScanStore interface {
	SaveRun(ctx context.Context, run ScanRun) (ScanRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]ScanRun, error)
	LatestRun(ctx context.Context) (ScanRun, error)
	ListRunRows(ctx context.Context, runID uuid.UUID) ([]ScanRow, error)
	ListRunCycles(ctx context.Context, runID uuid.UUID, limit int) ([]CycleRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store persists scan runs in PostgreSQL.
type Store struct {
	db DB
}

// NewStore wires a pgx pool (or anything shaped like one) into a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

var (
	_ ScanStore      = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

func (s *Store) getDB() (DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock takes a transaction-scoped advisory lock. The lock is held
// until unlock is called, which ends the transaction.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin lock transaction: %w", err)
	}

	var acquired bool
	if err := tx.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		_ = tx.Rollback(ctx)
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		_ = tx.Rollback(ctx)
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// rollback releases xact locks; nothing else ran in this transaction
		_ = tx.Rollback(ctxUnlock)
	}
	return unlock, true, nil
}

// SaveRun inserts a run with its rows and cycles in one transaction. A fresh
// ID is assigned when run.ID is zero.
func (s *Store) SaveRun(ctx context.Context, run ScanRun) (ScanRun, error) {
	db, err := s.getDB()
	if err != nil {
		return ScanRun{}, err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return ScanRun{}, fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := tx.QueryRow(ctx, insertRunSQL,
		run.ID,
		run.Batch,
		run.Provider,
		run.ThresholdPct.String(),
		run.Scanned,
		run.Skipped,
		run.TotalCycles,
		run.PeakMonth,
		run.ChiSquare,
		run.PValue,
		run.StartedAt,
		run.FinishedAt,
	).Scan(&run.CreatedAt); err != nil {
		return ScanRun{}, fmt.Errorf("insert scan run: %w", err)
	}

	for pos, row := range run.Rows {
		if _, err := tx.Exec(ctx, insertRowSQL,
			run.ID,
			pos,
			row.Instrument,
			row.CycleCount,
			row.AvgReturnPct.String(),
			row.PeakMonth,
		); err != nil {
			return ScanRun{}, fmt.Errorf("insert scan row %s: %w", row.Instrument, err)
		}

		for _, c := range row.Cycles {
			if _, err := tx.Exec(ctx, insertCycleSQL,
				run.ID,
				row.Instrument,
				c.StartDate,
				c.EndDate,
				c.StartClose.String(),
				c.EndClose.String(),
				c.DurationDays,
				c.ReturnPct.String(),
			); err != nil {
				return ScanRun{}, fmt.Errorf("insert scan cycle %s: %w", row.Instrument, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ScanRun{}, fmt.Errorf("commit save run: %w", err)
	}
	return run, nil
}

// ListRecentRuns lists runs newest first, without rows.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]ScanRun, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]ScanRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// LatestRun returns the newest run including its rows.
func (s *Store) LatestRun(ctx context.Context) (ScanRun, error) {
	runs, err := s.ListRecentRuns(ctx, 1)
	if err != nil {
		return ScanRun{}, err
	}
	if len(runs) == 0 {
		return ScanRun{}, ErrNoRuns
	}

	run := runs[0]
	run.Rows, err = s.ListRunRows(ctx, run.ID)
	if err != nil {
		return ScanRun{}, err
	}
	return run, nil
}

// ListRunRows lists the rows of a run in their original order.
func (s *Store) ListRunRows(ctx context.Context, runID uuid.UUID) ([]ScanRow, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listRunRowsSQL, runID)
	if queryErr != nil {
		return nil, fmt.Errorf("list run rows: %w", queryErr)
	}
	defer rows.Close()

	out := make([]ScanRow, 0)
	for rows.Next() {
		var (
			row    ScanRow
			avgStr string
		)
		if err := rows.Scan(&row.Instrument, &row.CycleCount, &avgStr, &row.PeakMonth); err != nil {
			return nil, err
		}
		if row.AvgReturnPct, err = decimal.NewFromString(avgStr); err != nil {
			return nil, fmt.Errorf("parse avg return pct: %w", err)
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListRunCycles lists up to limit cycles of a run ordered by instrument and start.
func (s *Store) ListRunCycles(ctx context.Context, runID uuid.UUID, limit int) ([]CycleRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listRunCyclesSQL, runID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list run cycles: %w", queryErr)
	}
	defer rows.Close()

	out := make([]CycleRecord, 0)
	for rows.Next() {
		c, scanErr := scanCycle(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// RunStartMonths counts every cycle of a run by start month, independent of
// any export limit.
func (s *Store) RunStartMonths(ctx context.Context, runID uuid.UUID) (cycle.MonthDistribution, error) {
	var dist cycle.MonthDistribution
	db, err := s.getDB()
	if err != nil {
		return dist, err
	}

	rows, queryErr := db.Query(ctx, runStartMonthsSQL, runID)
	if queryErr != nil {
		return dist, fmt.Errorf("count run start months: %w", queryErr)
	}
	defer rows.Close()

	for rows.Next() {
		var month, count int
		if err := rows.Scan(&month, &count); err != nil {
			return dist, err
		}
		for i := 0; i < count; i++ {
			dist.Add(time.Month(month))
		}
	}
	return dist, rows.Err()
}

func scanRun(rows pgx.Rows) (ScanRun, error) {
	var (
		run          ScanRun
		thresholdStr string
	)
	if err := rows.Scan(
		&run.ID,
		&run.Batch,
		&run.Provider,
		&thresholdStr,
		&run.Scanned,
		&run.Skipped,
		&run.TotalCycles,
		&run.PeakMonth,
		&run.ChiSquare,
		&run.PValue,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	); err != nil {
		return ScanRun{}, err
	}

	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		return ScanRun{}, fmt.Errorf("parse threshold pct: %w", err)
	}
	run.ThresholdPct = threshold
	return run, nil
}

func scanCycle(rows pgx.Rows) (CycleRecord, error) {
	var c CycleRecord
	var startStr, endStr, returnStr string
	if err := rows.Scan(
		&c.Instrument,
		&c.StartDate,
		&c.EndDate,
		&startStr,
		&endStr,
		&c.DurationDays,
		&returnStr,
	); err != nil {
		return CycleRecord{}, err
	}

	var err error
	if c.StartClose, err = decimal.NewFromString(startStr); err != nil {
		return CycleRecord{}, fmt.Errorf("parse start close: %w", err)
	}
	if c.EndClose, err = decimal.NewFromString(endStr); err != nil {
		return CycleRecord{}, fmt.Errorf("parse end close: %w", err)
	}
	if c.ReturnPct, err = decimal.NewFromString(returnStr); err != nil {
		return CycleRecord{}, fmt.Errorf("parse return pct: %w", err)
	}
	return c, nil
}
