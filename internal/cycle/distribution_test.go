package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func cycleStarting(m time.Month) Cycle {
	return Cycle{StartDate: time.Date(2020, m, 10, 0, 0, 0, 0, time.UTC)}
}

func TestDistributionHasTwelveMonths(t *testing.T) {
	dist := Distribution([]Cycle{cycleStarting(time.March), cycleStarting(time.March), cycleStarting(time.November)})

	assert.Len(t, dist, 12)
	assert.Equal(t, 2, dist.Count(time.March))
	assert.Equal(t, 1, dist.Count(time.November))
	assert.Equal(t, 0, dist.Count(time.January))
	assert.Equal(t, 3, dist.Total())
}

func TestPeakPrefersSmallestMonthOnTie(t *testing.T) {
	dist := Distribution([]Cycle{cycleStarting(time.October), cycleStarting(time.April), cycleStarting(time.October), cycleStarting(time.April)})

	month, ok := dist.Peak()
	assert.True(t, ok)
	assert.Equal(t, time.April, month)
}

func TestPeakOnEmptyDistribution(t *testing.T) {
	var dist MonthDistribution
	_, ok := dist.Peak()
	assert.False(t, ok)
}

func TestMergeIsOrderIndependent(t *testing.T) {
	a := Distribution([]Cycle{cycleStarting(time.January), cycleStarting(time.June)})
	b := Distribution([]Cycle{cycleStarting(time.June)})

	ab, ba := a, b
	ab.Merge(b)
	ba.Merge(a)
	assert.Equal(t, ab, ba)
	assert.Equal(t, 2, ab.Count(time.June))
}

func TestShortMonthName(t *testing.T) {
	assert.Equal(t, "Mar", ShortMonthName(time.March))
	assert.Equal(t, "-", ShortMonthName(0))
}
