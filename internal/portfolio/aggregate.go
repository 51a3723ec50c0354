// Package portfolio runs cycle detection across many instruments and reduces
// the per-instrument results into a summary table and a month distribution.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"cyclescan/internal/cycle"
)

// Skip reasons recorded for instruments that contribute no row.
const (
	ReasonUnavailable = "data not available"
	ReasonNoCycles    = "no cycles found"
)

// Row summarises the cycles of one instrument.
type Row struct {
	Instrument   string
	CycleCount   int
	AvgReturnPct decimal.Decimal
	PeakMonth    time.Month
	Cycles       []cycle.Cycle
}

// Skip records an instrument left out of the report.
type Skip struct {
	Instrument string
	Reason     string
}

// Report is the reduction of one portfolio scan. Rows keep input order.
type Report struct {
	Threshold    decimal.Decimal
	Rows         []Row
	Distribution cycle.MonthDistribution
	Skipped      []Skip
	Scanned      int
}

// PeakMonth is the month with the most cycle starts across every instrument.
// Ties go to the smallest month; ok is false when no cycles were found.
func (r Report) PeakMonth() (time.Month, bool) {
	return r.Distribution.Peak()
}

// TotalCycles counts every cycle behind the distribution.
func (r Report) TotalCycles() int {
	return r.Distribution.Total()
}

// AllCycles flattens the cycles of every row in row order.
func (r Report) AllCycles() []cycle.Cycle {
	out := make([]cycle.Cycle, 0, r.TotalCycles())
	for _, row := range r.Rows {
		out = append(out, row.Cycles...)
	}
	return out
}

// outcome is the per-instrument result the reduction consumes.
type outcome struct {
	instrument  string
	unavailable bool
	cycles      []cycle.Cycle
}

// Aggregate detects cycles in every series and reduces them into a report.
// Series without observations count as unavailable and are skipped, as are
// series that produce no cycles.
func Aggregate(series []cycle.Series, detector *cycle.Detector, thresholdPct decimal.Decimal) Report {
	outcomes := make([]outcome, len(series))
	for i, s := range series {
		outcomes[i] = outcome{instrument: s.Instrument}
		if s.Len() == 0 {
			outcomes[i].unavailable = true
			continue
		}
		outcomes[i].cycles = detector.Detect(s, thresholdPct)
	}
	return reduce(outcomes, thresholdPct)
}

// reduce folds outcomes in slice order, so the report does not depend on the
// order in which instruments finished.
func reduce(outcomes []outcome, thresholdPct decimal.Decimal) Report {
	report := Report{
		Threshold: thresholdPct,
		Rows:      make([]Row, 0, len(outcomes)),
		Scanned:   len(outcomes),
	}

	for _, o := range outcomes {
		switch {
		case o.unavailable:
			report.Skipped = append(report.Skipped, Skip{Instrument: o.instrument, Reason: ReasonUnavailable})
			continue
		case len(o.cycles) == 0:
			report.Skipped = append(report.Skipped, Skip{Instrument: o.instrument, Reason: ReasonNoCycles})
			continue
		}

		row, dist := summarise(o.instrument, o.cycles)
		report.Rows = append(report.Rows, row)
		report.Distribution.Merge(dist)
	}
	return report
}

func summarise(instrument string, cycles []cycle.Cycle) (Row, cycle.MonthDistribution) {
	dist := cycle.Distribution(cycles)
	peak, _ := dist.Peak()

	returns := make([]decimal.Decimal, len(cycles))
	for i, c := range cycles {
		returns[i] = c.ReturnPct
	}

	return Row{
		Instrument:   instrument,
		CycleCount:   len(cycles),
		AvgReturnPct: decimal.Avg(returns[0], returns[1:]...),
		PeakMonth:    peak,
		Cycles:       cycles,
	}, dist
}
