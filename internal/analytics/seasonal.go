package analytics

import (
	"time"
)

// Reliable seasonal profiles need a full year of months spread over at least two years
const (
	SeasonalReliableMonths = 12
	SeasonalReliableYears  = 2
)

// AnalyzeSeasonality averages each calendar month across years and divides by the
// overall mean. Every calendar month present gets a ratio; with less than a full
// year of history across two years the profile is flagged low-confidence.
func AnalyzeSeasonality(series []MonthlyPoint) SeasonalProfile {
	profile := SeasonalProfile{
		Ratios:        map[time.Month]float64{},
		LowConfidence: true,
		Months:        len(series),
		Status:        StatusInsufficientData,
	}
	if len(series) == 0 {
		return profile
	}

	years := make(map[int]struct{})
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	var total float64
	for _, p := range series {
		years[p.Period.Year] = struct{}{}
		sums[p.Period.Month] += p.Total
		counts[p.Period.Month]++
		total += p.Total
	}
	profile.Years = len(years)
	profile.LowConfidence = len(series) < SeasonalReliableMonths || len(years) < SeasonalReliableYears

	overall := total / float64(len(series))
	if overall == 0 {
		profile.Status = StatusNotApplicable
		return profile
	}

	for m, sum := range sums {
		profile.Ratios[m] = (sum / float64(counts[m])) / overall
	}
	profile.Status = StatusOK
	return profile
}

// PeakAndLowMonths returns the calendar months with the highest and lowest ratios.
// Ties go to the earlier month. ok is false when the profile is empty.
func (sp SeasonalProfile) PeakAndLowMonths() (peak, low time.Month, ok bool) {
	if sp.Status != StatusOK || len(sp.Ratios) == 0 {
		return 0, 0, false
	}
	for m := time.January; m <= time.December; m++ {
		r, present := sp.Ratios[m]
		if !present {
			continue
		}
		if !ok {
			peak, low, ok = m, m, true
			continue
		}
		if r > sp.Ratios[peak] {
			peak = m
		}
		if r < sp.Ratios[low] {
			low = m
		}
	}
	return peak, low, ok
}
