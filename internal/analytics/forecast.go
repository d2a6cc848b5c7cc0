package analytics

import (
	"errors"
	"math"
)

// ZScore returns the two-sided normal quantile for a confidence level, e.g. 1.2816 at 0.8
func ZScore(confidenceLevel float64) float64 {
	return math.Sqrt2 * math.Erfinv(confidenceLevel)
}

// ForecastSeries projects horizon months past the last observed period.
//
// Each step extends the fitted trend, scales it by the seasonal ratio of its
// calendar month when one exists, and clamps the estimate at zero. Bounds are
// symmetric around the estimate with a margin of z * residualStdDev * sqrt(step),
// so interval width never shrinks further out.
func ForecastSeries(series []MonthlyPoint, stats SeriesStatistics, profile SeasonalProfile, horizon int, confidenceLevel float64) ([]ForecastPoint, error) {
	cfg := Config{Horizon: horizon, ConfidenceLevel: confidenceLevel}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(series) < 2 {
		return nil, ErrInsufficientHistory
	}

	trend := stats.Trend
	if !trend.Available() {
		trend = FitTrend(series)
	}
	if !trend.Available() {
		return nil, ErrInsufficientHistory
	}

	sigma := ResidualStdDev(series, trend)
	z := ZScore(confidenceLevel)
	last := series[len(series)-1].Period
	lastX := float64(last.Index() - series[0].Period.Index())

	points := make([]ForecastPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		period := last.AddMonths(step)
		raw := trend.At(lastX + float64(step))

		ratio := 1.0
		if r, ok := profile.Ratio(period.Month); ok {
			ratio = r
		}

		estimate := math.Max(0, raw*ratio)
		margin := z * sigma * math.Sqrt(float64(step))

		points = append(points, ForecastPoint{
			Period:          period,
			StepsAhead:      step,
			TrendEstimate:   raw,
			SeasonalRatio:   ratio,
			PointEstimate:   estimate,
			LowerBound:      estimate - margin,
			UpperBound:      estimate + margin,
			Margin:          margin,
			ConfidenceLevel: confidenceLevel,
		})
	}

	return points, nil
}

// BuildForecast wraps ForecastSeries, turning insufficient history into a status
// rather than an error
func BuildForecast(series []MonthlyPoint, stats SeriesStatistics, profile SeasonalProfile, cfg Config) (Forecast, error) {
	fc := Forecast{
		Horizon:         cfg.Horizon,
		ConfidenceLevel: cfg.ConfidenceLevel,
		Z:               ZScore(cfg.ConfidenceLevel),
		Points:          []ForecastPoint{},
	}

	points, err := ForecastSeries(series, stats, profile, cfg.Horizon, cfg.ConfidenceLevel)
	switch {
	case errors.Is(err, ErrInsufficientHistory):
		fc.Status = StatusInsufficientHistory
		return fc, nil
	case err != nil:
		return Forecast{}, err
	}

	trend := stats.Trend
	if !trend.Available() {
		trend = FitTrend(series)
	}
	fc.Status = StatusOK
	fc.ResidualStdDev = ResidualStdDev(series, trend)
	fc.Points = points
	return fc, nil
}
