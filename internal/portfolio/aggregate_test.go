package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyclescan/internal/cycle"
)

var march1 = time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)

// rallySeries climbs from 100 to 140 over 35 days starting at start, then stays flat.
func rallySeries(name string, start time.Time) cycle.Series {
	obs := make([]cycle.Observation, 0, 80)
	for i := 0; i < 35; i++ {
		obs = append(obs, cycle.Observation{Date: start.AddDate(0, 0, i), Close: decimal.NewFromFloat(100 + float64(i)*0.8)})
	}
	for i := 35; i < 80; i++ {
		obs = append(obs, cycle.Observation{Date: start.AddDate(0, 0, i), Close: decimal.NewFromInt(140)})
	}
	return cycle.Series{Instrument: name, Observations: obs}
}

func flatSeries(name string, start time.Time, days int) cycle.Series {
	obs := make([]cycle.Observation, days)
	for i := range obs {
		obs[i] = cycle.Observation{Date: start.AddDate(0, 0, i), Close: decimal.NewFromInt(100)}
	}
	return cycle.Series{Instrument: name, Observations: obs}
}

func TestAggregateMarchPortfolio(t *testing.T) {
	series := []cycle.Series{
		rallySeries("AAA", march1),
		{Instrument: "BBB"},
		rallySeries("CCC", march1.AddDate(0, 0, 4)),
	}

	report := Aggregate(series, cycle.NewDetector(cycle.DetectorOptions{}), decimal.NewFromInt(30))

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "AAA", report.Rows[0].Instrument)
	assert.Equal(t, "CCC", report.Rows[1].Instrument)
	for _, row := range report.Rows {
		assert.Equal(t, 1, row.CycleCount)
		assert.Equal(t, time.March, row.PeakMonth)
		assert.True(t, row.AvgReturnPct.Equal(decimal.NewFromInt(40)), "avg %s", row.AvgReturnPct)
	}

	assert.Equal(t, 2, report.Distribution.Count(time.March))
	assert.Equal(t, 2, report.TotalCycles())
	peak, ok := report.PeakMonth()
	require.True(t, ok)
	assert.Equal(t, time.March, peak)

	assert.Equal(t, []Skip{{Instrument: "BBB", Reason: ReasonUnavailable}}, report.Skipped)
	assert.Equal(t, 3, report.Scanned)
}

func TestAggregateSkipsInstrumentsWithoutCycles(t *testing.T) {
	series := []cycle.Series{flatSeries("FLAT", march1, 120)}
	report := Aggregate(series, cycle.NewDetector(cycle.DetectorOptions{}), decimal.NewFromInt(30))

	assert.Empty(t, report.Rows)
	assert.Equal(t, []Skip{{Instrument: "FLAT", Reason: ReasonNoCycles}}, report.Skipped)
	_, ok := report.PeakMonth()
	assert.False(t, ok)
}

func TestAggregateAveragesReturns(t *testing.T) {
	cycles := []cycle.Cycle{
		{StartDate: march1, ReturnPct: decimal.NewFromInt(31)},
		{StartDate: march1.AddDate(0, 2, 0), ReturnPct: decimal.NewFromInt(45)},
		{StartDate: march1.AddDate(1, 0, 0), ReturnPct: decimal.NewFromInt(35)},
	}
	row, dist := summarise("X", cycles)

	assert.Equal(t, 3, row.CycleCount)
	assert.True(t, row.AvgReturnPct.Equal(decimal.NewFromInt(37)), "avg %s", row.AvgReturnPct)
	assert.Equal(t, time.March, row.PeakMonth)
	assert.Equal(t, 2, dist.Count(time.March))
	assert.Equal(t, 1, dist.Count(time.May))
}

func TestReduceKeepsInputOrder(t *testing.T) {
	c := []cycle.Cycle{{StartDate: march1, ReturnPct: decimal.NewFromInt(40)}}
	outcomes := []outcome{
		{instrument: "ZZZ", cycles: c},
		{instrument: "AAA", cycles: c},
		{instrument: "MMM", unavailable: true},
	}
	report := reduce(outcomes, decimal.NewFromInt(30))

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "ZZZ", report.Rows[0].Instrument)
	assert.Equal(t, "AAA", report.Rows[1].Instrument)
	assert.Equal(t, 2, report.Distribution.Count(time.March))
}

func TestReportAllCycles(t *testing.T) {
	series := []cycle.Series{rallySeries("AAA", march1), rallySeries("CCC", march1.AddDate(0, 5, 0))}
	report := Aggregate(series, cycle.NewDetector(cycle.DetectorOptions{}), decimal.NewFromInt(30))

	all := report.AllCycles()
	require.Len(t, all, 2)
	assert.Equal(t, time.March, all[0].StartMonth())
	assert.Equal(t, time.August, all[1].StartMonth())
}
