package cycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one daily close for an instrument.
type Observation struct {
	Date  time.Time
	Close decimal.Decimal
}

// Series holds the ordered daily closes of one instrument, ascending by date.
type Series struct {
	Instrument   string
	Observations []Observation
}

// Len reports the number of observations.
func (s Series) Len() int {
	return len(s.Observations)
}

// Validate checks the ordering and price rules adapters are expected to uphold.
func (s Series) Validate() error {
	for i, obs := range s.Observations {
		if obs.Close.Sign() <= 0 {
			return fmt.Errorf("observation %d (%s): close must be positive", i, obs.Date.Format(time.DateOnly))
		}
		if i == 0 {
			continue
		}
		if !civilDate(obs.Date).After(civilDate(s.Observations[i-1].Date)) {
			return fmt.Errorf("observation %d (%s): dates must be strictly increasing", i, obs.Date.Format(time.DateOnly))
		}
	}
	return nil
}

// Cycle is a rally that cleared the return threshold within the duration window.
type Cycle struct {
	StartDate    time.Time
	EndDate      time.Time
	StartClose   decimal.Decimal
	EndClose     decimal.Decimal
	DurationDays int
	ReturnPct    decimal.Decimal
}

// StartMonth returns the calendar month the cycle started in.
func (c Cycle) StartMonth() time.Month {
	return c.StartDate.Month()
}

// civilDate drops the clock so day arithmetic only sees the calendar date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalendarDays counts whole calendar days from a to b.
func CalendarDays(a, b time.Time) int {
	return int(civilDate(b).Sub(civilDate(a)).Hours() / 24)
}
