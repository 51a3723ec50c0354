package cycle

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(closes ...float64) Series {
	return spacedSeries(1, closes...)
}

func spacedSeries(stepDays int, closes ...float64) Series {
	obs := make([]Observation, len(closes))
	for i, c := range closes {
		obs[i] = Observation{Date: day0.AddDate(0, 0, i*stepDays), Close: decimal.NewFromFloat(c)}
	}
	return Series{Instrument: "TEST", Observations: obs}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func pct(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestDetectShortSeries(t *testing.T) {
	assert.Empty(t, Detect(Series{}, pct(30)))
	assert.Empty(t, Detect(dailySeries(100), pct(30)))
	assert.NotNil(t, Detect(Series{}, pct(30)))
}

func TestDetectSingleRally(t *testing.T) {
	// 100 creeping to 127.2 over 34 days, 140 on day 35, flat afterwards
	closes := make([]float64, 0, 80)
	for i := 0; i < 35; i++ {
		closes = append(closes, 100+float64(i)*0.8)
	}
	closes = append(closes, repeat(140, 45)...)

	cycles := Detect(dailySeries(closes...), pct(30))
	require.Len(t, cycles, 1)

	c := cycles[0]
	assert.Equal(t, 35, c.DurationDays)
	assert.True(t, c.ReturnPct.Equal(decimal.NewFromInt(40)), "return %s", c.ReturnPct)
	assert.Equal(t, day0, c.StartDate)
	assert.Equal(t, day0.AddDate(0, 0, 35), c.EndDate)
}

func TestDetectRallyBelowDurationFloor(t *testing.T) {
	// 50% in 25 days, then straight back to 100
	closes := make([]float64, 0, 100)
	for i := 0; i <= 25; i++ {
		closes = append(closes, 100+float64(i)*2)
	}
	closes = append(closes, repeat(100, 74)...)

	assert.Empty(t, Detect(dailySeries(closes...), pct(30)))
}

func TestDetectChainsFromPreviousEnd(t *testing.T) {
	closes := make([]float64, 0, 120)
	for i := 0; i < 35; i++ {
		closes = append(closes, 100+float64(i)*0.5)
	}
	closes = append(closes, 140)
	for i := 1; i < 35; i++ {
		closes = append(closes, 140+float64(i)*0.5)
	}
	closes = append(closes, 200)
	closes = append(closes, repeat(200, 40)...)

	cycles := Detect(dailySeries(closes...), pct(30))
	require.Len(t, cycles, 2)
	assert.Equal(t, cycles[0].EndDate, cycles[1].StartDate)
	assert.Equal(t, 35, cycles[1].DurationDays)
}

func TestDetectFirstMatchNotBestMatch(t *testing.T) {
	closes := repeat(100, 30)
	closes = append(closes, 135) // day 30: +35%
	closes = append(closes, repeat(135, 9)...)
	closes = append(closes, 300) // day 40: +200%, ignored
	closes = append(closes, repeat(135, 10)...)

	cycles := Detect(dailySeries(closes...), pct(30))
	require.NotEmpty(t, cycles)
	assert.Equal(t, 30, cycles[0].DurationDays)
	assert.True(t, cycles[0].ReturnPct.Equal(decimal.NewFromInt(35)))
}

func TestDetectThresholdIsStrict(t *testing.T) {
	closes := repeat(100, 30)
	closes = append(closes, repeat(130, 20)...)

	assert.Empty(t, Detect(dailySeries(closes...), pct(30)))
	assert.Len(t, Detect(dailySeries(closes...), pct(29.99)), 1)
}

func TestDetectZeroStartPrice(t *testing.T) {
	obs := dailySeries(append(repeat(100, 40), repeat(100, 10)...)...).Observations
	obs[0].Close = decimal.Zero
	obs[35].Close = decimal.NewFromInt(500)

	var cycles []Cycle
	assert.NotPanics(t, func() {
		cycles = Detect(Series{Observations: obs}, pct(30))
	})
	for _, c := range cycles {
		assert.False(t, c.StartClose.IsZero())
	}
}

func TestDetectCalendarDaysWithSparseData(t *testing.T) {
	// weekly observations: week 5 sits exactly 35 calendar days after the start
	cycles := Detect(spacedSeries(7, 100, 101, 102, 103, 104, 140, 140, 140), pct(30))
	require.Len(t, cycles, 1)
	assert.Equal(t, 35, cycles[0].DurationDays)
}

func TestDetectLookaheadCapsByIndex(t *testing.T) {
	closes := repeat(100, 30)
	closes = append(closes, repeat(200, 30)...)
	series := dailySeries(closes...)

	narrow := NewDetector(DetectorOptions{Lookahead: 10})
	assert.Empty(t, narrow.Detect(series, pct(30)))
	assert.NotEmpty(t, NewDetector(DetectorOptions{}).Detect(series, pct(30)))
}

func TestNewDetectorDefaults(t *testing.T) {
	opts := NewDetector(DetectorOptions{}).Options()
	assert.Equal(t, DetectorOptions{MinDays: 30, MaxDays: 45, Lookahead: 45}, opts)
}

func TestDetectOnRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	closes := make([]float64, 2000)
	price := 100.0
	for i := range closes {
		price *= 1 + (rng.Float64()-0.48)*0.08
		closes[i] = price
	}
	series := dailySeries(closes...)
	threshold := pct(15)

	cycles := Detect(series, threshold)
	require.NotEmpty(t, cycles)
	for i, c := range cycles {
		days := CalendarDays(c.StartDate, c.EndDate)
		assert.Equal(t, days, c.DurationDays)
		assert.GreaterOrEqual(t, days, 30)
		assert.LessOrEqual(t, days, 45)
		assert.True(t, c.ReturnPct.GreaterThan(threshold))
		if i > 0 {
			assert.False(t, c.StartDate.Before(cycles[i-1].EndDate), "cycles overlap at %d", i)
		}
	}
}

func TestSeriesValidate(t *testing.T) {
	assert.NoError(t, dailySeries(1, 2, 3).Validate())

	dup := dailySeries(1, 2)
	dup.Observations[1].Date = dup.Observations[0].Date.Add(3 * time.Hour)
	assert.Error(t, dup.Validate())

	neg := dailySeries(1, -2)
	assert.Error(t, neg.Validate())
}

func TestCalendarDaysIgnoresClock(t *testing.T) {
	a := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 31, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, CalendarDays(a, b))
}
