package analytics

import (
	"fmt"
	"strings"
)

// InsightInput is everything the insight rules may inspect for one category
type InsightInput struct {
	Category   string
	Series     []MonthlyPoint
	Statistics SeriesStatistics
	Seasonal   SeasonalProfile
	Forecast   Forecast
	Score      *CategoryScore
	Summary    Summary
}

// GenerateInsights evaluates the rule table in order and appends the seasonal narrative.
// The same input always yields the same insights in the same order.
func GenerateInsights(in InsightInput, rules []InsightRule, th Thresholds) []Insight {
	facts := collectFacts(in)
	fired := make(map[string]bool)
	insights := make([]Insight, 0, len(rules))

	for _, rule := range rules {
		if rule.Group != "" && fired[rule.Group] {
			continue
		}
		fact := facts[rule.Fact]
		if !rule.Comparator.Matches(fact, rule.Threshold) {
			continue
		}
		if rule.Group != "" {
			fired[rule.Group] = true
		}
		insights = append(insights, Insight{
			Code:     rule.Code,
			Category: in.Category,
			Severity: rule.Severity,
			Message:  renderRule(rule, in.Category, fact),
		})
	}

	if seasonal, ok := seasonalInsight(in, th); ok {
		insights = append(insights, seasonal)
	}

	return insights
}

func collectFacts(in InsightInput) map[Fact]Metric {
	facts := map[Fact]Metric{
		FactGrowthRate:     in.Statistics.GrowthRate,
		FactVolatility:     in.Statistics.CoefficientOfVariation,
		FactEfficiency:     InsufficientData(),
		FactRisk:           InsufficientData(),
		FactForecastChange: forecastChange(in.Series, in.Forecast),
		FactShare:          in.Summary.ShareOfTotal,
		FactBudget:         in.Summary.RecommendedBudget,
	}
	if in.Score != nil {
		facts[FactEfficiency] = Known(in.Score.EfficiencyScore)
		facts[FactRisk] = Known(float64(in.Score.RiskLevel))
	}
	return facts
}

// forecastChange compares the final forecast month with the latest observed month
func forecastChange(series []MonthlyPoint, fc Forecast) Metric {
	if !fc.Available() || len(series) == 0 {
		return InsufficientData()
	}
	latest := series[len(series)-1].Total
	if latest == 0 {
		return NotApplicable()
	}
	final := fc.Points[len(fc.Points)-1].PointEstimate
	return Known(final/latest - 1)
}

func renderRule(rule InsightRule, category string, fact Metric) string {
	value := ""
	if fact.Available() {
		scale := rule.Scale
		if scale == 0 {
			scale = 1
		}
		format := rule.Format
		if format == "" {
			format = "%.2f"
		}
		value = fmt.Sprintf(format, fact.Value*scale)
	}
	return strings.NewReplacer("{category}", category, "{value}", value).Replace(rule.Message)
}

func seasonalInsight(in InsightInput, th Thresholds) (Insight, bool) {
	months := len(in.Series)
	if months < th.SeasonalMinMonths {
		return Insight{
			Code:     "seasonal_learning",
			Category: in.Category,
			Severity: SeverityInfo,
			Message: fmt.Sprintf("%s seasonal pattern is still being learned (%d of %d months observed)",
				in.Category, months, th.SeasonalMinMonths),
		}, true
	}

	if len(in.Seasonal.Ratios) < th.SeasonalMinCalendarMonths {
		return Insight{}, false
	}
	peak, low, ok := in.Seasonal.PeakAndLowMonths()
	if !ok {
		return Insight{}, false
	}

	msg := fmt.Sprintf("%s spending peaks in %s (%.2fx average) and is lowest in %s (%.2fx average)",
		in.Category, peak, in.Seasonal.Ratios[peak], low, in.Seasonal.Ratios[low])
	if in.Seasonal.LowConfidence {
		msg += "; pattern is low confidence until a full year across two years is observed"
	}
	return Insight{
		Code:     "seasonal_pattern",
		Category: in.Category,
		Severity: SeverityInfo,
		Message:  msg,
	}, true
}
