package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AnalysisMetrics holds the application metrics recorded around analysis runs
type AnalysisMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	AnalysisRunsTotal    metric.Int64Counter
	AnalysisDuration     metric.Float64Histogram
	AnalysisErrors       metric.Int64Counter
	RowsProcessed        metric.Int64Counter
	RowsSkipped          metric.Int64Counter
	CategoriesAnalyzed   metric.Int64Counter
	ForecastsUnavailable metric.Int64Counter
	DatasetCacheHits     metric.Int64Counter
	DatasetCacheMisses   metric.Int64Counter
	ReportsRendered      metric.Int64Counter
}

// NewAnalysisMetrics registers the application instruments on meter
func NewAnalysisMetrics(meter metric.Meter) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{}
	var err error

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests"},
		{&m.AnalysisRunsTotal, "analysis_runs_total", "Total number of analysis runs"},
		{&m.AnalysisErrors, "analysis_errors_total", "Total number of failed analysis runs"},
		{&m.RowsProcessed, "analysis_rows_total", "Total number of input rows received"},
		{&m.RowsSkipped, "analysis_rows_skipped_total", "Total number of rows skipped during normalization"},
		{&m.CategoriesAnalyzed, "analysis_categories_total", "Total number of categories analyzed"},
		{&m.ForecastsUnavailable, "analysis_forecasts_unavailable_total", "Forecasts not produced for lack of history"},
		{&m.DatasetCacheHits, "dataset_cache_hits_total", "Dataset cache hits"},
		{&m.DatasetCacheMisses, "dataset_cache_misses_total", "Dataset cache misses"},
		{&m.ReportsRendered, "reports_rendered_total", "Reports rendered by format"},
	}
	for _, c := range counters {
		if *c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.AnalysisDuration, err = meter.Float64Histogram(
		"analysis_duration_seconds",
		metric.WithDescription("Analysis run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// AnalysisRun describes a finished run for metric recording
type AnalysisRun struct {
	Source      string
	Rows        int
	Skipped     int
	Categories  int
	Unavailable int
	Duration    time.Duration
	Err         error
}

// RecordAnalysisRun records counters and the duration of one run
func (m *AnalysisMetrics) RecordAnalysisRun(ctx context.Context, run AnalysisRun) {
	if m == nil {
		return
	}

	source := attribute.String("source", run.Source)
	status := attribute.String("status", "success")
	if run.Err != nil {
		status = attribute.String("status", "failure")
		m.AnalysisErrors.Add(ctx, 1, metric.WithAttributes(source))
	}

	m.AnalysisRunsTotal.Add(ctx, 1, metric.WithAttributes(source, status))
	m.AnalysisDuration.Record(ctx, run.Duration.Seconds(), metric.WithAttributes(source, status))
	m.RowsProcessed.Add(ctx, int64(run.Rows), metric.WithAttributes(source))
	m.RowsSkipped.Add(ctx, int64(run.Skipped), metric.WithAttributes(source))
	m.CategoriesAnalyzed.Add(ctx, int64(run.Categories), metric.WithAttributes(source))
	if run.Unavailable > 0 {
		m.ForecastsUnavailable.Add(ctx, int64(run.Unavailable), metric.WithAttributes(source))
	}
}

// RecordCacheLookup counts a dataset cache hit or miss
func (m *AnalysisMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.DatasetCacheHits.Add(ctx, 1)
		return
	}
	m.DatasetCacheMisses.Add(ctx, 1)
}

// RecordReport counts a rendered report
func (m *AnalysisMetrics) RecordReport(ctx context.Context, format string) {
	if m == nil {
		return
	}
	m.ReportsRendered.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

// RecordHTTPRequest records one completed request
func (m *AnalysisMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
