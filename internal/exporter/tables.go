package exporter

import (
	"expensecli/internal/analytics"
)

// Table is a named grid of formatted cells
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Table names, also used as file stems and sheet names
const (
	TableSummary  = "summary"
	TableSeries   = "series"
	TableForecast = "forecast"
	TableScores   = "scores"
	TableInsights = "insights"
	TableRecords  = "records"
)

// BuildTables flattens a report into its export tables, in display order
func BuildTables(report *analytics.Report) []Table {
	return []Table{
		SummaryTable(report),
		SeriesTable(report),
		ForecastTable(report),
		ScoresTable(report),
		InsightsTable(report),
	}
}

func analyses(report *analytics.Report) []analytics.CategoryAnalysis {
	out := make([]analytics.CategoryAnalysis, 0, len(report.Categories)+1)
	out = append(out, report.Overall)
	return append(out, report.Categories...)
}

// SummaryTable has one row per category plus the overall row first
func SummaryTable(report *analytics.Report) Table {
	t := Table{
		Name: TableSummary,
		Headers: []string{
			"Category", "Total Spent", "Transactions", "Months", "Average Monthly",
			"Recommended Budget", "Share of Total", "Std Deviation", "Coefficient of Variation",
			"Growth Rate", "Peak Month", "Low Month",
		},
	}
	for _, c := range analyses(report) {
		peak, low := "", ""
		if c.Statistics.PeakPeriod != nil {
			peak = c.Statistics.PeakPeriod.String()
		}
		if c.Statistics.TroughPeriod != nil {
			low = c.Statistics.TroughPeriod.String()
		}
		t.Rows = append(t.Rows, []string{
			c.Category,
			formatFloat(c.Summary.TotalSpent),
			formatInt(c.Summary.Transactions),
			formatInt(c.Summary.AnalysisPeriod),
			formatMetric(c.Summary.AverageMonthly),
			formatMetric(c.Summary.RecommendedBudget),
			formatPercent(c.Summary.ShareOfTotal),
			formatMetric(c.Statistics.StdDeviation),
			formatRatio(c.Statistics.CoefficientOfVariation),
			formatRatio(c.Statistics.GrowthRate),
			peak,
			low,
		})
	}
	return t
}

// SeriesTable lists the monthly totals of every category
func SeriesTable(report *analytics.Report) Table {
	t := Table{
		Name:    TableSeries,
		Headers: []string{"Category", "Period", "Total", "Transactions", "Average"},
	}
	for _, c := range analyses(report) {
		for _, p := range c.Series {
			t.Rows = append(t.Rows, []string{
				c.Category,
				p.Period.String(),
				formatFloat(p.Total),
				formatInt(p.Count),
				formatFloat(p.Average),
			})
		}
	}
	return t
}

// ForecastTable lists projected months. Categories without a forecast get
// one row carrying the forecast status.
func ForecastTable(report *analytics.Report) Table {
	t := Table{
		Name: TableForecast,
		Headers: []string{
			"Category", "Period", "Steps Ahead", "Point Estimate", "Lower Bound",
			"Upper Bound", "Seasonal Ratio", "Confidence Level", "Status",
		},
	}
	for _, c := range analyses(report) {
		fc := c.Forecast
		if !fc.Available() {
			t.Rows = append(t.Rows, []string{c.Category, "", "", "", "", "", "", "", string(fc.Status)})
			continue
		}
		for _, p := range fc.Points {
			t.Rows = append(t.Rows, []string{
				c.Category,
				p.Period.String(),
				formatInt(p.StepsAhead),
				formatFloat(p.PointEstimate),
				formatFloat(p.LowerBound),
				formatFloat(p.UpperBound),
				formatFloat(p.SeasonalRatio),
				formatFloat(p.ConfidenceLevel),
				string(fc.Status),
			})
		}
	}
	return t
}

// ScoresTable lists ranked category scores
func ScoresTable(report *analytics.Report) Table {
	t := Table{
		Name: TableScores,
		Headers: []string{
			"Rank", "Category", "Efficiency Score", "Volatility Score", "Growth Score",
			"Risk Level", "Volatility Risk", "Growth Risk", "Monitoring",
		},
	}
	for _, s := range report.Scores {
		t.Rows = append(t.Rows, []string{
			formatInt(s.Rank),
			s.Category,
			formatFloat(s.EfficiencyScore),
			formatFloat(s.VolatilityScore),
			formatFloat(s.GrowthScore),
			s.RiskLevel.String(),
			s.VolatilityRisk.String(),
			s.GrowthRisk.String(),
			s.MonitoringCadence,
		})
	}
	return t
}

// InsightsTable lists generated insights
func InsightsTable(report *analytics.Report) Table {
	t := Table{
		Name:    TableInsights,
		Headers: []string{"Severity", "Category", "Code", "Message"},
	}
	for _, in := range report.Insights {
		t.Rows = append(t.Rows, []string{string(in.Severity), in.Category, in.Code, in.Message})
	}
	return t
}

// RecordsTable lists transaction records, e.g. after filtering
func RecordsTable(records []analytics.TransactionRecord) Table {
	t := Table{
		Name: TableRecords,
		Headers: []string{
			analytics.FieldDate, analytics.FieldExpenseHead, analytics.FieldSubCategory,
			analytics.FieldAmount, analytics.FieldDepartment, analytics.FieldPaymentMethod,
			analytics.FieldVendor, analytics.FieldNotes,
		},
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.Date.Format("2006-01-02"),
			r.Category,
			r.SubCategory,
			formatFloat(r.Amount),
			r.Department,
			r.PaymentMethod,
			r.Vendor,
			r.Notes,
		})
	}
	return t
}
