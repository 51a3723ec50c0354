// Package seasonality tests whether cycle start months cluster across the
// calendar and projects the month the next cycle is likely to start in.
package seasonality

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"cyclescan/internal/cycle"
)

// DegreesOfFreedom of the uniform-month goodness-of-fit test.
const DegreesOfFreedom = 11

// ErrNoCycles is returned when the analysis is asked to run on an empty cycle set.
var ErrNoCycles = errors.New("seasonality: no cycles to analyse")

// Result carries the raw test statistics. Interpreting significance is up to the caller.
type Result struct {
	Distribution cycle.MonthDistribution
	Total        int
	ChiSquare    float64
	PValue       float64
}

// Significant reports whether the p-value falls below alpha.
func (r Result) Significant(alpha float64) bool {
	return r.PValue < alpha
}

// Analyze buckets cycles by start month and runs a chi-square goodness-of-fit
// test against a uniform month distribution (expected = total/12 per month).
func Analyze(cycles []cycle.Cycle) (Result, error) {
	if len(cycles) == 0 {
		return Result{}, ErrNoCycles
	}

	dist := cycle.Distribution(cycles)
	total := dist.Total()

	expected := make([]float64, len(dist))
	for i := range expected {
		expected[i] = float64(total) / float64(len(dist))
	}

	chi := stat.ChiSquare(dist.Float64s(), expected)
	if chi < 0 || math.IsNaN(chi) {
		chi = 0
	}
	p := distuv.ChiSquared{K: DegreesOfFreedom}.Survival(chi)

	return Result{
		Distribution: dist,
		Total:        total,
		ChiSquare:    chi,
		PValue:       clamp01(p),
	}, nil
}

// PredictNext projects the first day of the most frequent start month, this
// year if that month has not passed yet, otherwise next year. Ties go to the
// smallest month. This is a frequency heuristic, not a forecast.
func PredictNext(cycles []cycle.Cycle, now time.Time) (time.Time, bool) {
	month, ok := cycle.Distribution(cycles).Peak()
	if !ok {
		return time.Time{}, false
	}

	year := now.Year()
	if now.Month() > month {
		year++
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, now.Location()), true
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
