package exporter

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"expensecli/internal/analytics"
)

// ReportMeta labels a rendered report
type ReportMeta struct {
	Title       string
	DatasetName string
	GeneratedAt time.Time
	Version     string
}

type htmlView struct {
	Meta     ReportMeta
	Report   *analytics.Report
	Overall  analytics.CategoryAnalysis
	Scores   Table
	Forecast Table
	Summary  Table
	Insights []analytics.Insight
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"metric":  formatMetric,
	"percent": formatPercent,
	"money":   formatFloat,
	"ratio":   formatRatio,
	"date": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
}).Parse(reportHTML))

// RenderHTML writes a self-contained HTML report
func RenderHTML(out io.Writer, report *analytics.Report, meta ReportMeta) error {
	if report == nil {
		return fmt.Errorf("render html: nil report")
	}
	if meta.Title == "" {
		meta.Title = "Expense Analysis Report"
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	view := htmlView{
		Meta:     meta,
		Report:   report,
		Overall:  report.Overall,
		Scores:   ScoresTable(report),
		Forecast: ForecastTable(report),
		Summary:  SummaryTable(report),
		Insights: report.Insights,
	}
	if err := reportTemplate.Execute(out, view); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Meta.Title}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1b1b1b; margin: 32px; }
  h1 { color: #1f4e78; margin-bottom: 4px; }
  h2 { color: #1f4e78; border-bottom: 2px solid #1f4e78; padding-bottom: 4px; margin-top: 32px; }
  .meta { color: #666; font-size: 12px; }
  .cards { display: flex; gap: 16px; margin-top: 16px; }
  .card { flex: 1; border: 1px solid #d0d7de; border-radius: 6px; padding: 12px; }
  .card .label { font-size: 11px; text-transform: uppercase; color: #666; }
  .card .value { font-size: 20px; font-weight: bold; margin-top: 4px; }
  table { border-collapse: collapse; width: 100%; font-size: 11px; margin-top: 8px; }
  th { background: #1f4e78; color: #fff; text-align: left; padding: 6px; }
  td { border-bottom: 1px solid #e1e4e8; padding: 5px 6px; }
  tr:nth-child(even) td { background: #f6f8fa; }
  .insight { padding: 8px 12px; margin: 6px 0; border-left: 4px solid #1f4e78; background: #f6f8fa; }
  .insight.warning { border-color: #d29922; }
  .insight.critical { border-color: #cf222e; }
  .page-break { page-break-before: always; }
</style>
</head>
<body>
<h1>{{.Meta.Title}}</h1>
<div class="meta">
  {{if .Meta.DatasetName}}Dataset: {{.Meta.DatasetName}} &middot; {{end}}Generated {{date .Meta.GeneratedAt}}{{if .Meta.Version}} &middot; v{{.Meta.Version}}{{end}}
</div>

<div class="cards">
  <div class="card"><div class="label">Total spent</div><div class="value">{{money .Overall.Summary.TotalSpent}}</div></div>
  <div class="card"><div class="label">Average monthly</div><div class="value">{{metric .Overall.Summary.AverageMonthly}}</div></div>
  <div class="card"><div class="label">Recommended budget</div><div class="value">{{metric .Overall.Summary.RecommendedBudget}}</div></div>
  <div class="card"><div class="label">Months analysed</div><div class="value">{{.Overall.Summary.AnalysisPeriod}}</div></div>
  <div class="card"><div class="label">Rows skipped</div><div class="value">{{.Report.Validation.SkippedRows}} / {{.Report.Validation.TotalRows}}</div></div>
</div>

<h2>Key insights</h2>
{{range .Insights}}<div class="insight {{.Severity}}"><strong>{{.Category}}</strong>: {{.Message}}</div>
{{else}}<p>No insights were triggered for this dataset.</p>
{{end}}

<h2>Category scores</h2>
<table>
  <tr>{{range .Scores.Headers}}<th>{{.}}</th>{{end}}</tr>
  {{range .Scores.Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{end}}
</table>

<h2>Category summary</h2>
<table>
  <tr>{{range .Summary.Headers}}<th>{{.}}</th>{{end}}</tr>
  {{range .Summary.Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{end}}
</table>

<h2 class="page-break">Forecast ({{.Report.Config.Horizon}} months, {{percent .ConfidenceMetric}} confidence)</h2>
<table>
  <tr>{{range .Forecast.Headers}}<th>{{.}}</th>{{end}}</tr>
  {{range .Forecast.Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{end}}
</table>
</body>
</html>
`

// ConfidenceMetric exposes the configured confidence to the template
func (v htmlView) ConfidenceMetric() analytics.Metric {
	return analytics.Known(v.Report.Config.ConfidenceLevel)
}
