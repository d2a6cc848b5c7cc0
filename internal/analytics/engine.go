package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Engine orchestrates the expense analytics pipeline:
// normalize -> aggregate -> statistics + seasonality -> forecast -> scoring -> insights.
// It holds configuration only; every call works on the snapshot it is given.
type Engine struct {
	config     Config
	thresholds Thresholds
	rules      []InsightRule
	normalizer *Normalizer
	logger     *slog.Logger
}

// Option customizes an Engine
type Option func(*Engine)

// WithThresholds replaces the scoring cutoffs
func WithThresholds(th Thresholds) Option {
	return func(e *Engine) { e.thresholds = th }
}

// WithInsightRules replaces the insight rule table
func WithInsightRules(rules []InsightRule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithNormalizer replaces the row normalizer
func WithNormalizer(n *Normalizer) Option {
	return func(e *Engine) { e.normalizer = n }
}

// NewEngine validates the configuration and creates an engine
func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:     cfg,
		thresholds: DefaultThresholds(),
		rules:      DefaultInsightRules(),
		normalizer: NewNormalizer(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Thresholds returns the scoring cutoffs in use
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// WithConfig returns a copy of the engine using cfg
func (e *Engine) WithConfig(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine configuration: %w", err)
	}
	clone := *e
	clone.config = cfg
	return &clone, nil
}

// Normalize validates raw rows with the engine's normalizer
func (e *Engine) Normalize(rows []RawRow) NormalizeResult {
	return e.normalizer.Normalize(rows)
}

// Analyze runs the full pipeline over raw rows
func (e *Engine) Analyze(ctx context.Context, rows []RawRow) (*Report, error) {
	normalized := e.Normalize(rows)
	if len(normalized.Skipped) > 0 {
		e.logger.WarnContext(ctx, "skipped invalid rows",
			"skipped", len(normalized.Skipped),
			"total", normalized.TotalRows,
		)
	}
	return e.AnalyzeRecords(ctx, normalized.Summary(), normalized.Records)
}

// AnalyzeRecords runs the pipeline over already validated records, one category at a time
func (e *Engine) AnalyzeRecords(ctx context.Context, validation ValidationSummary, records []TransactionRecord) (*Report, error) {
	start := time.Now()
	e.logger.InfoContext(ctx, "starting expense analysis",
		"records", len(records),
		"horizon", e.config.Horizon,
		"fill_gaps", e.config.FillGaps,
		"confidence_level", e.config.ConfidenceLevel,
	)

	grand := TotalAmount(records)
	overall, err := e.AnalyzeCategory(ctx, OverallCategory, records, grand)
	if err != nil {
		return nil, err
	}

	groups := GroupByCategory(records)
	names := SortedCategories(groups)
	categories := make([]CategoryAnalysis, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis cancelled: %w", err)
		}
		e.logger.DebugContext(ctx, "analyzing category",
			"category", name,
			"progress", fmt.Sprintf("%d/%d", i+1, len(names)),
			"records", len(groups[name]),
		)
		analysis, err := e.AnalyzeCategory(ctx, name, groups[name], grand)
		if err != nil {
			return nil, err
		}
		categories = append(categories, analysis)
	}

	report := e.Assemble(validation, overall, categories)
	e.logger.InfoContext(ctx, "expense analysis completed",
		"categories", len(categories),
		"insights", len(report.Insights),
		"duration", time.Since(start),
	)
	return report, nil
}

// AnalyzeCategory runs aggregation, statistics, seasonality and forecasting for one
// category. grandTotal is the spend across all categories, used for the share figure.
// Categories are independent, so callers may run this concurrently.
func (e *Engine) AnalyzeCategory(ctx context.Context, name string, records []TransactionRecord, grandTotal float64) (CategoryAnalysis, error) {
	series := AggregateMonthly(records, e.config.FillGaps)
	stats := ComputeStatistics(series)
	profile := AnalyzeSeasonality(series)

	fc, err := BuildForecast(series, stats, profile, e.config)
	if err != nil {
		return CategoryAnalysis{}, fmt.Errorf("forecast %s: %w", name, err)
	}
	if !fc.Available() {
		e.logger.DebugContext(ctx, "forecast unavailable",
			"category", name,
			"months", len(series),
			"status", fc.Status,
		)
	}

	return CategoryAnalysis{
		Category:   name,
		Summary:    e.summarize(name, records, series, stats, grandTotal),
		Series:     series,
		Statistics: stats,
		Seasonal:   profile,
		Forecast:   fc,
		Breakdown:  BreakdownBySubCategory(records),
	}, nil
}

// Assemble scores the category analyses against each other and generates insights.
// Overall insights come first, then categories in name order.
func (e *Engine) Assemble(validation ValidationSummary, overall CategoryAnalysis, categories []CategoryAnalysis) *Report {
	sorted := make([]CategoryAnalysis, len(categories))
	copy(sorted, categories)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Category < sorted[j].Category })

	inputs := make([]ScoreInput, 0, len(sorted))
	for _, c := range sorted {
		inputs = append(inputs, ScoreInput{Category: c.Category, Statistics: c.Statistics})
	}
	scores := ScoreCategories(inputs, e.thresholds)
	overallScore := ScoreCategory(ScoreInput{Category: overall.Category, Statistics: overall.Statistics}, e.thresholds)

	byName := make(map[string]CategoryScore, len(scores))
	for _, s := range scores {
		byName[s.Category] = s
	}

	insights := e.insightsFor(overall, &overallScore)
	for _, c := range sorted {
		score := byName[c.Category]
		insights = append(insights, e.insightsFor(c, &score)...)
	}

	if validation.Skipped == nil {
		validation.Skipped = []SkippedRow{}
	}
	return &Report{
		Config:       e.config,
		Validation:   validation,
		Overall:      overall,
		OverallScore: overallScore,
		Categories:   sorted,
		Scores:       scores,
		Insights:     insights,
	}
}

func (e *Engine) insightsFor(c CategoryAnalysis, score *CategoryScore) []Insight {
	return GenerateInsights(InsightInput{
		Category:   c.Category,
		Series:     c.Series,
		Statistics: c.Statistics,
		Seasonal:   c.Seasonal,
		Forecast:   c.Forecast,
		Score:      score,
		Summary:    c.Summary,
	}, e.rules, e.thresholds)
}

func (e *Engine) summarize(name string, records []TransactionRecord, series []MonthlyPoint, stats SeriesStatistics, grandTotal float64) Summary {
	total := TotalAmount(records)
	summary := Summary{
		TotalSpent:        total,
		Transactions:      len(records),
		AverageMonthly:    stats.Mean,
		RecommendedBudget: InsufficientData(),
		ShareOfTotal:      NotApplicable(),
		HighestMonthShare: InsufficientData(),
		LowestMonthShare:  InsufficientData(),
	}

	months := make(map[int]struct{})
	for _, rec := range records {
		months[rec.Period().Index()] = struct{}{}
	}
	summary.AnalysisPeriod = len(months)

	if stats.Mean.Available() {
		summary.RecommendedBudget = Known(stats.Mean.Value * e.thresholds.BudgetBuffer)
	}
	if name != OverallCategory && grandTotal > 0 {
		summary.ShareOfTotal = Known(total / grandTotal)
	}
	if stats.PeakPeriod != nil && stats.TroughPeriod != nil {
		if stats.Total > 0 {
			summary.HighestMonthShare = Known(totalAt(series, *stats.PeakPeriod) / stats.Total)
			summary.LowestMonthShare = Known(totalAt(series, *stats.TroughPeriod) / stats.Total)
		} else {
			summary.HighestMonthShare = NotApplicable()
			summary.LowestMonthShare = NotApplicable()
		}
	}
	return summary
}

func totalAt(series []MonthlyPoint, p Period) float64 {
	for _, mp := range series {
		if mp.Period == p {
			return mp.Total
		}
	}
	return 0
}
