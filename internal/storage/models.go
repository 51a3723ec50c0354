package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScanRun is one persisted portfolio scan of a registry batch.
type ScanRun struct {
	ID           uuid.UUID
	Batch        int
	Provider     string
	ThresholdPct decimal.Decimal
	Scanned      int
	Skipped      int
	TotalCycles  int
	// PeakMonth is 1-12, or 0 when the run found no cycles.
	PeakMonth  int
	ChiSquare  *float64
	PValue     *float64
	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time

	Rows []ScanRow
}

// ScanRow is the per-instrument summary inside a run.
type ScanRow struct {
	Instrument   string
	CycleCount   int
	AvgReturnPct decimal.Decimal
	PeakMonth    int
	Cycles       []CycleRecord
}

// CycleRecord is a detected cycle as stored.
type CycleRecord struct {
	Instrument   string
	StartDate    time.Time
	EndDate      time.Time
	StartClose   decimal.Decimal
	EndClose     decimal.Decimal
	DurationDays int
	ReturnPct    decimal.Decimal
}
