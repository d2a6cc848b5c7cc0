// Package analytics implements the expense analytics and forecasting engine.
//
// The engine turns a snapshot of raw expense rows into monthly series, descriptive
// statistics, seasonal profiles, forecasts with confidence bounds, comparative
// category scores and rule-based insights. It is a pure transformation: the same
// rows and configuration always produce the same Report, and nothing is retained
// between calls.
//
// # Pipeline
//
//   - normalize.go: raw rows to typed TransactionRecord values, skipping bad rows
//   - aggregate.go: calendar-month grouping, optional zero gap filling, breakdowns
//   - statistics.go: mean, population deviation, coefficient of variation, OLS trend
//   - seasonal.go: per calendar month ratio against the overall mean
//   - forecast.go: trend extrapolation with seasonal adjustment and residual bounds
//   - scoring.go: efficiency score, risk level and ranking across categories
//   - insights.go: rule table evaluation and the seasonal narrative
//   - rules.go: named thresholds and the default insight rule table
//   - filter.go: record selection by category, amount and date
//   - engine.go: orchestration and report assembly
//
// # Unavailable metrics
//
// A metric that cannot be computed is reported as a Metric with a status of
// insufficient_data or not_applicable rather than NaN. A forecast over fewer than two
// months carries the insufficient_history status. Only configuration errors abort a run.
//
// # Usage Example
//
//	engine, err := analytics.NewEngine(analytics.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	report, err := engine.Analyze(ctx, rows)
//	if err != nil {
//	    return err
//	}
//	for _, s := range report.Scores {
//	    fmt.Printf("%d. %s %.1f %s\n", s.Rank, s.Category, s.EfficiencyScore, s.RiskLevel)
//	}
package analytics
