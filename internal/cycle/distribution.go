package cycle

import "time"

// MonthDistribution counts cycle starts per calendar month. Index 0 is January.
// All twelve months are always present, months without cycles count zero.
type MonthDistribution [12]int

// Distribution buckets cycles by start month.
func Distribution(cycles []Cycle) MonthDistribution {
	var dist MonthDistribution
	for _, c := range cycles {
		dist.Add(c.StartMonth())
	}
	return dist
}

// Add records one cycle start in month m. Out of range months are ignored.
func (d *MonthDistribution) Add(m time.Month) {
	if m < time.January || m > time.December {
		return
	}
	d[m-1]++
}

// Count returns the number of cycle starts in month m.
func (d MonthDistribution) Count(m time.Month) int {
	if m < time.January || m > time.December {
		return 0
	}
	return d[m-1]
}

// Total sums all months.
func (d MonthDistribution) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

// Merge adds other into d month by month.
func (d *MonthDistribution) Merge(other MonthDistribution) {
	for i := range d {
		d[i] += other[i]
	}
}

// Peak returns the most frequent month. Ties go to the smallest month number.
// ok is false when the distribution is empty.
func (d MonthDistribution) Peak() (month time.Month, ok bool) {
	best := 0
	for i, n := range d {
		if n > best {
			best = n
			month = time.Month(i + 1)
		}
	}
	return month, best > 0
}

// Float64s returns the counts as float64 in month order.
func (d MonthDistribution) Float64s() []float64 {
	out := make([]float64, len(d))
	for i, n := range d {
		out[i] = float64(n)
	}
	return out
}

// ShortMonthName renders a month as its three letter abbreviation.
func ShortMonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return "-"
	}
	return m.String()[:3]
}
