package analytics

import (
	"math"
)

// ComputeStatistics derives descriptive metrics from a monthly series.
// Metrics that need more history than the series holds report their own status
// instead of failing the whole computation.
func ComputeStatistics(series []MonthlyPoint) SeriesStatistics {
	n := len(series)
	stats := SeriesStatistics{
		Months:                 n,
		Mean:                   InsufficientData(),
		StdDeviation:           InsufficientData(),
		CoefficientOfVariation: InsufficientData(),
		GrowthRate:             InsufficientData(),
		Trend:                  Trend{Status: StatusInsufficientData},
		MonthOverMonthDeltas:   []float64{},
	}
	if n == 0 {
		return stats
	}

	var sum float64
	peak, trough := 0, 0
	for i, p := range series {
		sum += p.Total
		// Strict comparison keeps the earliest period on ties
		if p.Total > series[peak].Total {
			peak = i
		}
		if p.Total < series[trough].Total {
			trough = i
		}
	}
	mean := sum / float64(n)
	stats.Total = sum
	stats.Mean = Known(mean)

	peakPeriod, troughPeriod := series[peak].Period, series[trough].Period
	stats.PeakPeriod = &peakPeriod
	stats.TroughPeriod = &troughPeriod

	var sq float64
	for _, p := range series {
		d := p.Total - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(n))
	stats.StdDeviation = Known(std)

	for i := 1; i < n; i++ {
		stats.MonthOverMonthDeltas = append(stats.MonthOverMonthDeltas, series[i].Total-series[i-1].Total)
	}

	if n < 2 {
		return stats
	}

	stats.Trend = FitTrend(series)

	if mean == 0 {
		stats.CoefficientOfVariation = NotApplicable()
		stats.GrowthRate = NotApplicable()
		return stats
	}
	stats.CoefficientOfVariation = Known(std / mean)
	if stats.Trend.Available() {
		stats.GrowthRate = Known(stats.Trend.Slope / mean)
	}

	return stats
}

// FitTrend fits y = intercept + slope*x by ordinary least squares, where x is the
// number of months since the first period. Contiguous series therefore use x = 0..n-1.
func FitTrend(series []MonthlyPoint) Trend {
	n := len(series)
	if n < 2 {
		return Trend{Status: StatusInsufficientData}
	}

	origin := series[0].Period.Index()
	var sumX, sumY float64
	for _, p := range series {
		sumX += float64(p.Period.Index() - origin)
		sumY += p.Total
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxy, sxx float64
	for _, p := range series {
		dx := float64(p.Period.Index()-origin) - meanX
		sxy += dx * (p.Total - meanY)
		sxx += dx * dx
	}
	if sxx == 0 {
		return Trend{Status: StatusInsufficientData}
	}

	slope := sxy / sxx
	return Trend{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
		Status:    StatusOK,
	}
}

// ResidualStdDev is the standard error of the series around its trend line,
// using n-2 degrees of freedom. Two points fit exactly and yield zero.
func ResidualStdDev(series []MonthlyPoint, trend Trend) float64 {
	n := len(series)
	if n <= 2 || !trend.Available() {
		return 0
	}

	origin := series[0].Period.Index()
	var rss float64
	for _, p := range series {
		r := p.Total - trend.At(float64(p.Period.Index()-origin))
		rss += r * r
	}
	return math.Sqrt(rss / float64(n-2))
}
