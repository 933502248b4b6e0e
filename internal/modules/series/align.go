package series

import (
	"sort"
	"time"
)

// AlignedPanel holds per-fund close series resampled onto the union of all
// observation dates, so every fund has a value for every session.
type AlignedPanel struct {
	Funds  []string
	Dates  []time.Time
	Closes map[string][]float64 // fund -> closes aligned with Dates
}

// Align resamples the given series onto the union of their dates. Gaps are
// forward-filled from the previous session, and leading gaps are back-filled
// from the first available close. Empty series are skipped.
func Align(byFund map[string]FundSeries) AlignedPanel {
	dateSet := make(map[time.Time]bool)
	funds := make([]string, 0, len(byFund))
	for fund, s := range byFund {
		if s.Empty() {
			continue
		}
		funds = append(funds, fund)
		for _, d := range s.Dates {
			dateSet[d] = true
		}
	}
	sort.Strings(funds)

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	aligned := AlignedPanel{
		Funds:  funds,
		Dates:  dates,
		Closes: make(map[string][]float64, len(funds)),
	}

	for _, fund := range funds {
		s := byFund[fund]
		closes := make([]float64, len(dates))

		byDate := make(map[time.Time]float64, len(s.Dates))
		for i, d := range s.Dates {
			byDate[d] = s.Closes[i]
		}

		first := -1
		last := 0.0
		for i, d := range dates {
			if c, ok := byDate[d]; ok {
				last = c
				if first < 0 {
					first = i
				}
			}
			closes[i] = last
		}
		// Back-fill sessions before the fund's first observation.
		for i := 0; i < first; i++ {
			closes[i] = closes[first]
		}
		aligned.Closes[fund] = closes
	}
	return aligned
}

// ReturnsMatrix converts the aligned closes into per-fund daily returns,
// all of equal length (len(Dates) - 1), ordered as Funds.
func (p AlignedPanel) ReturnsMatrix() [][]float64 {
	matrix := make([][]float64, len(p.Funds))
	for i, fund := range p.Funds {
		closes := p.Closes[fund]
		returns := make([]float64, 0, len(closes)-1)
		for j := 1; j < len(closes); j++ {
			if closes[j-1] > 0 {
				returns = append(returns, (closes[j]-closes[j-1])/closes[j-1])
			} else {
				returns = append(returns, 0)
			}
		}
		matrix[i] = returns
	}
	return matrix
}
