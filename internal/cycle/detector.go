package cycle

import (
	"github.com/shopspring/decimal"
)

const (
	// DefaultMinDays is the shortest qualifying cycle in calendar days.
	DefaultMinDays = 30
	// DefaultMaxDays is the longest qualifying cycle in calendar days.
	DefaultMaxDays = 45
	// DefaultLookahead caps how many later observations are tried per start index.
	DefaultLookahead = 45
)

var hundred = decimal.NewFromInt(100)

// DetectorOptions tune the scan window.
type DetectorOptions struct {
	MinDays   int
	MaxDays   int
	Lookahead int
}

// Detector finds cycles with first-match, chained semantics: each start index
// takes the earliest qualifying end, and the next search starts at that end.
// A later end with a higher return inside the same window is never considered.
type Detector struct {
	opts DetectorOptions
}

// NewDetector builds a detector, falling back to the defaults for unset options.
func NewDetector(opts DetectorOptions) *Detector {
	if opts.MinDays <= 0 {
		opts.MinDays = DefaultMinDays
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = DefaultMaxDays
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	return &Detector{opts: opts}
}

// Options returns the effective options.
func (d *Detector) Options() DetectorOptions {
	return d.opts
}

// Detect runs the default detector.
func Detect(series Series, thresholdPct decimal.Decimal) []Cycle {
	return NewDetector(DetectorOptions{}).Detect(series, thresholdPct)
}

// Detect scans series left to right and returns non-overlapping cycles ordered
// by start date. Series with fewer than two observations yield no cycles.
//
// The lookahead caps candidate ends by index count, while qualification checks
// calendar days. With gaps in the data the two bounds disagree; both apply.
func (d *Detector) Detect(series Series, thresholdPct decimal.Decimal) []Cycle {
	obs := series.Observations
	n := len(obs)
	cycles := make([]Cycle, 0)
	if n < 2 {
		return cycles
	}

	i := 0
	for i < n-1 {
		end := d.firstMatch(obs, i, thresholdPct)
		if end < 0 {
			i++
			continue
		}

		start, stop := obs[i], obs[end]
		cycles = append(cycles, Cycle{
			StartDate:    start.Date,
			EndDate:      stop.Date,
			StartClose:   start.Close,
			EndClose:     stop.Close,
			DurationDays: CalendarDays(start.Date, stop.Date),
			ReturnPct:    percentChange(start.Close, stop.Close),
		})
		i = end
	}
	return cycles
}

// firstMatch returns the smallest qualifying end index for start i, or -1.
func (d *Detector) firstMatch(obs []Observation, i int, thresholdPct decimal.Decimal) int {
	limit := i + d.opts.Lookahead
	if limit > len(obs)-1 {
		limit = len(obs) - 1
	}

	start := obs[i]
	for j := i + 1; j <= limit; j++ {
		days := CalendarDays(start.Date, obs[j].Date)
		if days < d.opts.MinDays || days > d.opts.MaxDays {
			continue
		}
		// zero start price has no defined return
		if start.Close.IsZero() {
			continue
		}
		if percentChange(start.Close, obs[j].Close).GreaterThan(thresholdPct) {
			return j
		}
	}
	return -1
}

func percentChange(from, to decimal.Decimal) decimal.Decimal {
	return to.Sub(from).Div(from).Mul(hundred)
}
